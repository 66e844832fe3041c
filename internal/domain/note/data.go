package note

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"therapy_notes_generator/internal/domain/attendance"
	"therapy_notes_generator/internal/domain/group"
)

const (
	MaxSessions      = 4
	DefaultDiagnosis = "F33.2"
)

var ErrMissingField = fmt.Errorf("missing required note field")

// defaultGoals are used when a patient has fewer than four goals on file.
var defaultGoals = [MaxSessions]string{
	"Client will identify and resolve the underlying causes of depression, thus elevating mood and interest/pleasure in life.",
	"Client will significantly reduce the overall frequency and intensity of the anxiety symptoms so that daily functioning is improved.",
	"Client will feel refreshed and energetic during wakeful hours.",
	"Client will reach a personal balance between solitary time and interpersonal interaction with others.",
}

var ordinals = [MaxSessions]string{"first", "second", "third", "fourth"}

// Session is one activity block of the day as it appears in the note.
type Session struct {
	TimeRange       string
	Units           float64
	ActivityName    string
	SubactivityName string
	Paragraph       string
	Statement       string
	Intervention    string
}

// Data is the typed content of one note. Fields flattens it for the renderer.
type Data struct {
	Variant       Variant
	Program       group.Program
	ClinicName    string
	GroupName     string
	TherapistName string
	Date          time.Time
	BillingCode   string

	PatientName   string
	PatientNumber string
	Diagnoses     []group.Diagnosis
	Goals         [MaxSessions]string
	SelectedGoal  int

	Sessions        []Session
	ProgressSummary string

	AttendanceStatus attendance.Status
	AbsenceReasons   []attendance.Reason
}

// NewData fills the patient and group parts of a note from a job.
func NewData(job Job, therapist string) Data {
	d := Data{
		Variant:       job.Variant,
		Program:       job.Group.Program,
		ClinicName:    job.Group.ClinicName,
		GroupName:     job.Group.Name,
		TherapistName: therapist,
		Date:          job.Date,
		BillingCode:   job.BillingCode,
		PatientName:   job.Patient.FullName(),
		PatientNumber: job.Patient.PatientNumber,
		Diagnoses:     job.Patient.Diagnoses,
		SelectedGoal:  group.SelectedGoal(job.Date.Weekday()),
	}
	if job.Group.TherapistName != "" {
		d.TherapistName = job.Group.TherapistName
	}
	for i := range d.Goals {
		d.Goals[i] = job.Patient.Goal(i + 1)
		if d.Goals[i] == "" {
			d.Goals[i] = defaultGoals[i]
		}
	}
	if job.Attendance != nil {
		d.AttendanceStatus = job.Attendance.Status
		d.AbsenceReasons = job.Attendance.Reasons
	}
	return d
}

// Fields flattens the note into the renderer's key/value bag and checks required keys.
func (d Data) Fields() (map[string]string, error) {
	f := map[string]string{
		"clinical_name":    d.ClinicName,
		"group":            d.GroupName,
		"program":          string(d.Program),
		"terapeut_name":    d.TherapistName,
		"day":              d.Date.Weekday().String(),
		"date":             d.Date.Format("02/01/2006"),
		"code":             d.BillingCode,
		"patient_name":     strings.ToUpper(d.PatientName),
		"id":               strings.TrimSpace(d.PatientNumber),
		"note_variant":     string(d.Variant),
		"progress_summary": d.ProgressSummary,
	}

	for i := 0; i < MaxSessions; i++ {
		var code, desc string
		if i < len(d.Diagnoses) {
			code, desc = d.Diagnoses[i].Code, d.Diagnoses[i].Description
		}
		n := strconv.Itoa(i + 1)
		f["diagnostic_code"+n] = code
		f["diagnostic_description"+n] = desc
	}
	f["patient_icd10"] = primaryDiagnosis(d.Diagnoses)
	f["diagnostic_code"] = f["diagnostic_code1"]
	f["diagnostic_description"] = f["diagnostic_description1"]

	var total float64
	for i := 0; i < MaxSessions; i++ {
		n := strconv.Itoa(i + 1)
		goal := i + 1

		f["patient_goal"+n] = d.Goals[i]
		f["goal"+n+"_checkbox"] = "☐"
		f["group"+n+"_client_response_label"] = fmt.Sprintf("Group %d Client Response", goal)
		if d.SelectedGoal == goal {
			f["goal"+n+"_checkbox"] = "☒"
			f["group"+n+"_client_response_label"] = fmt.Sprintf("Group %d: Client Response(Goal#%d/Obj%dA)", goal, goal, goal)
		}

		var s Session
		present := i < len(d.Sessions)
		if present {
			s = d.Sessions[i]
		}
		f["hour_"+ordinals[i]+"_activity"] = s.TimeRange
		f["patient_group"+n+"_header"] = sessionHeader(d.Program, s)
		f["patient_group"+n+"_paragraph"] = programParagraph(d.Program, s.Paragraph)
		f["patient_statement"+n] = quote(s.Statement)
		f["patient_intervention"+n] = s.Intervention
		f["session_"+n+"_units"] = ""
		if present {
			units := s.Units
			if units <= 0 {
				units = 1
			}
			total += units
			f["session_"+n+"_units"] = fmt.Sprintf("Session %d: %s Units", goal, formatUnits(units))
		}
	}
	f["totalUnits"] = formatUnits(total)

	f["attendance_status"] = string(d.AttendanceStatus)
	reasons := make([]string, 0, len(d.AbsenceReasons))
	for _, r := range d.AbsenceReasons {
		reasons = append(reasons, absenceReasonText(r))
	}
	f["absence_reason"] = strings.Join(reasons, "; ")

	for _, key := range []string{"patient_name", "date", "day", "code"} {
		if strings.TrimSpace(f[key]) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	}
	return f, nil
}

// primaryDiagnosis picks the code flagged primary, else the first code on file, else F33.2.
func primaryDiagnosis(dxs []group.Diagnosis) string {
	for _, dx := range dxs {
		if dx.IsPrimary && dx.Code != "" {
			return dx.Code
		}
	}
	for _, dx := range dxs {
		if dx.Code != "" {
			return dx.Code
		}
	}
	return DefaultDiagnosis
}

var (
	iopGroupsRe  = regexp.MustCompile(`(?i)\s*activities?\s+for\s+IOP\s+groups?\s*-?\s*`)
	iopMentionRe = regexp.MustCompile(`(?i)\s*\bIOP\b\s*-?\s*`)
	weekdayTail  = regexp.MustCompile(`(?i)\s*-\s*(Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday):?\s*$`)
)

func sessionHeader(p group.Program, s Session) string {
	activity, sub := s.ActivityName, s.SubactivityName
	if p != group.ProgramIOP {
		activity, sub = stripIOP(activity), stripIOP(weekdayTail.ReplaceAllString(sub, ""))
	}
	switch {
	case activity == "":
		return ""
	case sub == "":
		return activity
	default:
		return activity + ": " + sub
	}
}

// stripIOP removes IOP-only wording from catalog names shared by both programs.
func stripIOP(s string) string {
	s = iopGroupsRe.ReplaceAllString(s, " ")
	s = iopMentionRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// programParagraph makes the therapist role in catalog text match the note's program.
func programParagraph(p group.Program, text string) string {
	if p == group.ProgramIOP {
		return strings.ReplaceAll(text, "PHP Therapist", "IOP Therapist")
	}
	return strings.ReplaceAll(text, "IOP Therapist", "PHP Therapist")
}

func quote(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return ""
	}
	return `"` + s + `"`
}

func formatUnits(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func absenceReasonText(r attendance.Reason) string {
	var label string
	switch r.Type {
	case attendance.ReasonMedicalAppointment:
		label = "Medical appointment"
	case attendance.ReasonFamilyTrip:
		label = "Family trip"
	case attendance.ReasonHospitalized:
		label = "Hospitalized"
	default:
		label = "Other"
	}
	if desc := strings.TrimSpace(r.Description); desc != "" {
		return label + ": " + desc
	}
	return label
}
