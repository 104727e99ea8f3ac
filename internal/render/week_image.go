// Package render рисует календарь учителя в PNG.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Константы размеров и отступов
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 180
	dayPaddingX      = 8
	minSlotHeight    = 8.0
	slotBorderRadius = 6.0
	shadowOffset     = 3.0
	totalDaysInWeek  = 7
	hourPaddingTop   = 2
	hourPaddingBot   = 2
	defaultMinHour   = 8
	defaultMaxHour   = 20
	maxSlotLabelLen  = 20
)

// Константы шрифтов
const (
	titleFontSize      = 25.0
	dayFontSize        = 27.0
	hourLabelFontSize  = 18.0
	slotTimeFontSize   = 17.0
	legendItemFontSize = 12.0
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 125}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{220, 220, 220, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	slotFreeColor        = color.RGBA{133, 193, 85, 220}
	slotPendingColor     = color.RGBA{255, 182, 193, 255} // Светло-розовый, ждёт подтверждения
	slotConfirmedColor   = color.RGBA{120, 170, 230, 235}
	slotTextColor        = color.RGBA{20, 24, 28, 230}
	slotPendingTextColor = color.RGBA{120, 40, 50, 255}
	slotShadowColor      = color.RGBA{0, 0, 0, 20}

	legendItemColor = color.RGBA{70, 74, 78, 220}
)

// weekBounds границы недели, end не включается
type weekBounds struct {
	start time.Time
	end   time.Time
}

// hourRange диапазон часов для отображения
type hourRange struct {
	start int
	end   int
	total int
}

// Renderer рисует недельный календарь.
// Без TTF шрифта используется basicfont, в нём нет кириллицы.
type Renderer struct {
	font *opentype.Font
}

// NewRenderer создаёт Renderer. fontData может быть nil.
func NewRenderer(fontData []byte) (*Renderer, error) {
	r := &Renderer{}
	if len(fontData) == 0 {
		return r, nil
	}

	parsed, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	r.font = parsed
	return r, nil
}

// setFont выставляет шрифт нужного размера или basicfont как fallback
func (r *Renderer) setFont(dc *gg.Context, size float64) {
	if r.font != nil {
		face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// WeekImage рисует неделю (Пн-Вс), содержащую day, в часовом поясе day.
// now нужен для подсветки сегодняшнего дня и линии текущего времени.
func (r *Renderer) WeekImage(day time.Time, slots []*model.TimeSlot, now time.Time) ([]byte, error) {
	loc := day.Location()
	week := weekOf(day)
	now = now.In(loc)
	today := normalizeToDay(now)
	highlightToday := !today.Before(week.start) && today.Before(week.end)

	inWeek := slotsInWeek(slots, week, loc)
	slotsByDay := groupSlotsByDay(inWeek)
	hours := calculateHourRange(inWeek)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / totalDaysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	r.drawHeader(dc, week)
	r.drawHourLabels(dc, hours, cellHeight)

	for dayIndex := 0; dayIndex < totalDaysInWeek; dayIndex++ {
		date := week.start.AddDate(0, 0, dayIndex)
		x := float64(leftLabelsWidth + dayIndex*dayWidth)
		y := float64(headerHeight)

		drawDayBackground(dc, x, y, dayWidth, dayHeight, dayIndex, highlightToday && date.Equal(today))
		r.drawDayHeader(dc, date, x, y, dayWidth)
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)
		for _, slot := range slotsByDay[date.Format(time.DateOnly)] {
			r.drawSlot(dc, slot, x, y, dayWidth, hours, cellHeight)
		}
	}

	if highlightToday {
		drawCurrentTimeLine(dc, now, hours, cellHeight, dayWidth)
	}
	r.drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// weekOf нормализует дату к границам недели (Пн-Вс)
func weekOf(date time.Time) weekBounds {
	normalized := normalizeToDay(date)

	daysSinceMonday := int(normalized.Weekday()) - 1
	if normalized.Weekday() == time.Sunday {
		daysSinceMonday = 6
	}

	start := normalized.AddDate(0, 0, -daysSinceMonday)
	return weekBounds{start: start, end: start.AddDate(0, 0, totalDaysInWeek)}
}

func normalizeToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// slotsInWeek копирует слоты, начинающиеся в эту неделю, с временем в поясе loc
func slotsInWeek(slots []*model.TimeSlot, week weekBounds, loc *time.Location) []*model.TimeSlot {
	var out []*model.TimeSlot
	for _, slot := range slots {
		if slot.StartTime.Before(week.start) || !slot.StartTime.Before(week.end) {
			continue
		}
		s := *slot
		s.StartTime = slot.StartTime.In(loc)
		s.EndTime = slot.EndTime.In(loc)
		out = append(out, &s)
	}
	return out
}

func groupSlotsByDay(slots []*model.TimeSlot) map[string][]*model.TimeSlot {
	slotsByDay := make(map[string][]*model.TimeSlot)
	for _, slot := range slots {
		key := slot.StartTime.Format(time.DateOnly)
		slotsByDay[key] = append(slotsByDay[key], slot)
	}
	return slotsByDay
}

// calculateHourRange определяет диапазон часов для отображения
func calculateHourRange(slots []*model.TimeSlot) hourRange {
	minHour := 24
	maxHour := 0

	for _, slot := range slots {
		startH := slot.StartTime.Hour()
		endH := slot.EndTime.Hour()
		if slot.EndTime.Minute() > 0 {
			endH++
		}
		// Занятие переходит через полночь
		if !sameDay(slot.StartTime, slot.EndTime) {
			endH = 24
		}
		minHour = min(minHour, startH)
		maxHour = max(maxHour, endH)
	}

	if minHour == 24 {
		minHour = defaultMinHour
		maxHour = defaultMaxHour
	}

	startHour := max(minHour-hourPaddingTop, 0)
	endHour := min(maxHour+hourPaddingBot, 23)

	return hourRange{
		start: startHour,
		end:   endHour,
		total: endHour - startHour + 1,
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// drawHeader рисует заголовок с названием месяца
func (r *Renderer) drawHeader(dc *gg.Context, week weekBounds) {
	startMonth := week.start.Month()
	endMonth := week.end.AddDate(0, 0, -1).Month()

	title := monthName(startMonth)
	if startMonth != endMonth {
		title += " - " + monthName(endMonth)
	}
	title += " " + strconv.Itoa(week.start.Year())

	r.setFont(dc, titleFontSize)
	dc.SetColor(textColor)
	w, h := dc.MeasureString(title)
	dc.DrawStringAnchored(title, w/2+10, float64(headerHeight)/8+h/2, 0, 0)
}

// drawHourLabels рисует колонку с часами слева
func (r *Renderer) drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	r.setFont(dc, hourLabelFontSize)
	dc.SetColor(hourLabelColor)

	for hIdx := 0; hIdx < hours.total; hIdx++ {
		y := float64(headerHeight) + float64(hIdx)*cellHeight
		label := fmt.Sprintf("%02d:00", hours.start+hIdx)
		dc.DrawStringAnchored(label, float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, dayIndex int, isToday bool) {
	switch {
	case isToday:
		dc.SetColor(todayBgColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

// drawDayHeader рисует день недели и дату
func (r *Renderer) drawDayHeader(dc *gg.Context, date time.Time, x, y float64, dayWidth int) {
	r.setFont(dc, dayFontSize)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Format("02.01"), x+float64(dayWidth)/2, y, 0.5, -1)
	dc.DrawStringAnchored(weekdayShort(date.Weekday()), x+float64(dayWidth)/2, y, 0.5, -0.2)
}

func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)

	for hIdx := 0; hIdx <= hours.total; hIdx++ {
		hy := y + float64(hIdx)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

// drawSlot рисует один слот
func (r *Renderer) drawSlot(dc *gg.Context, slot *model.TimeSlot, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	startHour := float64(slot.StartTime.Hour()) + float64(slot.StartTime.Minute())/60.0
	endHour := float64(slot.EndTime.Hour()) + float64(slot.EndTime.Minute())/60.0
	if !sameDay(slot.StartTime, slot.EndTime) {
		endHour = float64(hours.end + 1)
	}

	slotY := y + (startHour-float64(hours.start))*cellHeight
	slotHeight := max((endHour-startHour)*cellHeight, minSlotHeight)

	fillColor := slotColor(slot)
	slotWidth := float64(dayWidth) - float64(dayPaddingX*2)

	// Тень
	dc.SetColor(slotShadowColor)
	dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, slotY+2+shadowOffset, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(fillColor)
	dc.DrawRoundedRectangle(x+float64(dayPaddingX), slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	// Рамка
	dc.SetColor(darkenColor(fillColor, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x+float64(dayPaddingX), slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Stroke()

	txtColor := slotTextColor
	if slot.IsPending() {
		txtColor = slotPendingTextColor
	}

	r.setFont(dc, slotTimeFontSize)
	dc.SetColor(txtColor)
	txtX := x + float64(dayPaddingX) + 8
	txtY := slotY + 18
	dc.DrawStringAnchored(slot.StartTime.Format("15:04"), txtX, txtY, 0, 0)

	label := slotLabel(slot)
	if label != "" && slotHeight > 25 {
		r.setFont(dc, slotTimeFontSize-2)
		dc.SetColor(txtColor)
		dc.DrawStringAnchored(label, txtX, txtY+16, 0, 0)
	}
}

// slotLabel имя студента, иначе тема занятия
func slotLabel(slot *model.TimeSlot) string {
	if slot.IsFree() {
		return ""
	}
	label := slot.StudentName
	if label == "" {
		label = slot.CourseContent
	}
	return truncate(label, maxSlotLabelLen)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

func slotColor(slot *model.TimeSlot) color.RGBA {
	switch {
	case slot.IsFree():
		return slotFreeColor
	case slot.IsConfirmed:
		return slotConfirmedColor
	default:
		return slotPendingColor
	}
}

// darkenColor затемняет цвет на указанный множитель
func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

// drawCurrentTimeLine рисует линию текущего времени
func drawCurrentTimeLine(dc *gg.Context, now time.Time, hours hourRange, cellHeight float64, dayWidth int) {
	currentHour := float64(now.Hour()) + float64(now.Minute())/60.0
	if currentHour < float64(hours.start) || currentHour > float64(hours.end) {
		return
	}

	lineY := float64(headerHeight) + (currentHour-float64(hours.start))*cellHeight
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2.0)
	dc.DrawLine(float64(leftLabelsWidth), lineY, float64(leftLabelsWidth+totalDaysInWeek*dayWidth), lineY)
	dc.Stroke()
}

// drawLegend рисует легенду справа
func (r *Renderer) drawLegend(dc *gg.Context, dayWidth int) {
	legendX := float64(leftLabelsWidth + totalDaysInWeek*dayWidth + 10)
	legendY := float64(imageHeight) - 100.0

	items := []struct {
		label string
		clr   color.Color
	}{
		{"Свободно", slotFreeColor},
		{"Ждёт подтверждения", slotPendingColor},
		{"Подтверждено", slotConfirmedColor},
	}

	boxW := 20.0
	boxH := 14.0
	liY := legendY + 22

	r.setFont(dc, legendItemFontSize)
	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(legendX, liY, boxW, boxH, 3)
		dc.Fill()

		dc.SetColor(legendItemColor)
		dc.DrawStringAnchored(item.label, legendX+boxW+8, liY+boxH/2+1, 0, 0.2)
		liY += boxH + 14
	}
}

func weekdayShort(weekday time.Weekday) string {
	return [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}[weekday]
}

func monthName(month time.Month) string {
	return [...]string{"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь", "Июль",
		"Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь"}[month-1]
}
