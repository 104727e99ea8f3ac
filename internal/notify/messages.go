package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
)

func formatSlotTime(start, end time.Time, loc *time.Location) string {
	start = start.In(loc)
	end = end.In(loc)
	return fmt.Sprintf("%s %s-%s", start.Format("02.01.2006"), start.Format("15:04"), end.Format("15:04"))
}

func bookedText(slot *model.TimeSlot, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("📥 <b>Новая запись</b>\n\n")
	fmt.Fprintf(&sb, "👤 %s\n", html.EscapeString(slot.StudentName))
	fmt.Fprintf(&sb, "🕐 %s\n", formatSlotTime(slot.StartTime, slot.EndTime, loc))
	if slot.CourseContent != "" {
		fmt.Fprintf(&sb, "📚 %s\n", html.EscapeString(slot.CourseContent))
	}
	sb.WriteString("\nПодтвердите занятие в календаре.")
	return sb.String()
}

func confirmedText(slot *model.TimeSlot, loc *time.Location) string {
	return fmt.Sprintf("✅ <b>Занятие подтверждено</b>\n\n🕐 %s",
		formatSlotTime(slot.StartTime, slot.EndTime, loc))
}

func requestKind(req *model.ScheduleRequest) string {
	if req.Type == model.RequestTypeCancel {
		return "отмену"
	}
	return "перенос"
}

// lessonLine время занятия, к которому относится заявка
func lessonLine(req *model.ScheduleRequest, loc *time.Location) string {
	if req.SlotStartTime.IsZero() {
		return ""
	}
	return fmt.Sprintf("🕐 %s\n", formatSlotTime(req.SlotStartTime, req.SlotEndTime, loc))
}

func submittedText(req *model.ScheduleRequest, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔄 <b>Заявка на %s</b>\n\n", requestKind(req))
	fmt.Fprintf(&sb, "👤 %s\n", html.EscapeString(req.StudentName))
	sb.WriteString(lessonLine(req, loc))
	if req.Type == model.RequestTypeReschedule && req.NewStartTime != nil && req.NewEndTime != nil {
		fmt.Fprintf(&sb, "➡️ %s\n", formatSlotTime(*req.NewStartTime, *req.NewEndTime, loc))
	}
	if req.Reason != "" {
		fmt.Fprintf(&sb, "💬 %s\n", html.EscapeString(req.Reason))
	}
	return sb.String()
}

func approvedText(req *model.ScheduleRequest, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ <b>Заявка на %s одобрена</b>\n\n", requestKind(req))
	sb.WriteString(lessonLine(req, loc))
	return sb.String()
}

func rejectedText(req *model.ScheduleRequest, loc *time.Location) string {
	var sb strings.Builder
	if req.Resolution == model.ResolutionExpired {
		fmt.Fprintf(&sb, "⌛ <b>Заявка на %s не рассмотрена</b>\n\nЗанятие уже началось.\n", requestKind(req))
		return sb.String()
	}

	fmt.Fprintf(&sb, "❌ <b>Заявка на %s отклонена</b>\n\n", requestKind(req))
	sb.WriteString(lessonLine(req, loc))
	if req.Resolution != "" {
		fmt.Fprintf(&sb, "💬 %s\n", html.EscapeString(req.Resolution))
	}
	return sb.String()
}
