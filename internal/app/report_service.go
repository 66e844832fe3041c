package app

import (
	"fmt"
	"strings"
	"time"

	domainTelegram "therapy_notes_generator/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// GroupOutcome is the result of one group in a weekly run.
type GroupOutcome struct {
	GroupName  string
	WeekNumber int
	Jobs       int
	Documents  int
	Location   string
	Skipped    string
	Err        error
}

// RunReport summarizes a weekly run.
type RunReport struct {
	Date     time.Time
	Outcomes []GroupOutcome
}

// Generated is the number of groups whose archive was saved.
func (r RunReport) Generated() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil && o.Skipped == "" {
			n++
		}
	}
	return n
}

// Text renders the report as a plain message.
func (r RunReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly notes run %s: %d of %d groups generated\n", r.Date.Format("2006-01-02"), r.Generated(), len(r.Outcomes))
	for _, o := range r.Outcomes {
		switch {
		case o.Err != nil:
			fmt.Fprintf(&b, "- %s: FAILED (%v)\n", o.GroupName, o.Err)
		case o.Skipped != "":
			fmt.Fprintf(&b, "- %s: skipped, %s\n", o.GroupName, o.Skipped)
		default:
			fmt.Fprintf(&b, "- %s week %d: %d/%d documents -> %s\n", o.GroupName, o.WeekNumber, o.Documents, o.Jobs, o.Location)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ReportService delivers run reports to the manager over Telegram. Without a client or
// manager chat the report is only logged.
type ReportService struct {
	telegramClient    domainTelegram.Client
	managerTelegramID int64
	logger            *logrus.Entry
}

func NewReportService(tc domainTelegram.Client, managerID int64, logger *logrus.Entry) *ReportService {
	return &ReportService{
		telegramClient:    tc,
		managerTelegramID: managerID,
		logger:            logger.WithField("component", "report"),
	}
}

// Send never fails the run; delivery errors are logged.
func (s *ReportService) Send(report RunReport) {
	text := report.Text()
	log := s.logger.WithFields(logrus.Fields{
		"date":      report.Date.Format("2006-01-02"),
		"groups":    len(report.Outcomes),
		"generated": report.Generated(),
	})
	log.Info(text)

	if s.telegramClient == nil || s.managerTelegramID == 0 {
		log.Debug("Manager chat not configured, report not delivered")
		return
	}
	if err := s.telegramClient.SendMessage(s.managerTelegramID, text, &telebot.SendOptions{ParseMode: telebot.ModeDefault}); err != nil {
		log.WithError(err).WithField("manager_id", s.managerTelegramID).Error("Failed to send run report to manager")
		return
	}
	log.WithField("manager_id", s.managerTelegramID).Info("Run report sent to manager")
}
