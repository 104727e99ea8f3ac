package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/Freeeeeet/scheduler_hub/internal/render"
	"github.com/google/uuid"
)

func main() {
	out := flag.String("out", "week.png", "output file")
	fontPath := flag.String("font", "", "TTF font with cyrillic glyphs")
	flag.Parse()

	var fontData []byte
	if *fontPath != "" {
		data, err := os.ReadFile(*fontPath)
		if err != nil {
			fmt.Printf("Ошибка чтения шрифта: %v\n", err)
			os.Exit(1)
		}
		fontData = data
	}

	renderer, err := render.NewRenderer(fontData)
	if err != nil {
		fmt.Printf("Ошибка загрузки шрифта: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	monday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for monday.Weekday() != time.Monday {
		monday = monday.AddDate(0, 0, -1)
	}

	slots := []*model.TimeSlot{
		sampleSlot(monday, 9, 60, nil, false),
		sampleSlot(monday, 14, 60, studentPtr(100), false),
		sampleSlot(monday.AddDate(0, 0, 1), 10, 90, nil, false),
		sampleSlot(monday.AddDate(0, 0, 2), 9, 60, studentPtr(200), true),
		sampleSlot(monday.AddDate(0, 0, 2), 15, 60, nil, false),
		sampleSlot(monday.AddDate(0, 0, 4), 11, 45, studentPtr(100), true),
		sampleSlot(monday.AddDate(0, 0, 4), 13, 60, nil, false),
	}

	imageData, err := renderer.WeekImage(monday, slots, now)
	if err != nil {
		fmt.Printf("Ошибка генерации изображения: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, imageData, 0644); err != nil {
		fmt.Printf("Ошибка сохранения файла: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Изображение сохранено в %s\n", *out)
	fmt.Printf("📅 Неделя с %s\n", monday.Format("02.01.2006"))
	fmt.Printf("📊 Слотов: %d\n", len(slots))
}

func sampleSlot(day time.Time, hour, minutes int, studentID *int64, confirmed bool) *model.TimeSlot {
	start := day.Add(time.Duration(hour) * time.Hour)
	slot := &model.TimeSlot{
		ID:        uuid.New(),
		TeacherID: 1,
		StartTime: start,
		EndTime:   start.Add(time.Duration(minutes) * time.Minute),
		Status:    model.SlotStatusFree,
	}
	if studentID != nil {
		slot.Status = model.SlotStatusBusy
		slot.StudentID = studentID
		slot.StudentName = fmt.Sprintf("Student %d", *studentID)
		slot.IsConfirmed = confirmed
	}
	return slot
}

func studentPtr(id int64) *int64 {
	return &id
}
