package model

import (
	"strings"
	"time"
)

// Remark classifies a confirmation-log record. Only RemarkConfirmed counts
// as a valid delivery; everything else is invalid.
type Remark string

const (
	RemarkConfirmed    Remark = "reception_confirmed"
	RemarkNotConfirmed Remark = "sent_not_confirmed"
	RemarkNotSent      Remark = "not_sent"
	RemarkUnknown      Remark = "unknown"
)

func ParseRemark(s string) Remark {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "reception_confirmed"):
		return RemarkConfirmed
	case strings.Contains(s, "sent_not_confirmed"):
		return RemarkNotConfirmed
	case strings.Contains(s, "not_sent"):
		return RemarkNotSent
	}
	return RemarkUnknown
}

// Impact is the severity of an outage announcement.
type Impact string

const (
	ImpactDataUnavailable Impact = "data-unavailable"
	ImpactDataInterrupted Impact = "data-interrupted"
	ImpactDataDegraded    Impact = "data-degraded"
	ImpactDataDelayed     Impact = "data-delayed"
	ImpactNone            Impact = "none"
	ImpactUnknown         Impact = "unknown"
)

// Priority orders impacts from worst (0) to least severe. Impacts outside
// the four data-affecting levels sort last.
func (i Impact) Priority() int {
	switch i {
	case ImpactDataUnavailable:
		return 0
	case ImpactDataInterrupted:
		return 1
	case ImpactDataDegraded:
		return 2
	case ImpactDataDelayed:
		return 3
	}
	return 999
}

func ParseImpact(s string) Impact {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "degrade"):
		return ImpactDataDegraded
	case strings.Contains(s, "interrupt"):
		return ImpactDataInterrupted
	case strings.Contains(s, "delay"):
		return ImpactDataDelayed
	case strings.Contains(s, "unavailab"):
		return ImpactDataUnavailable
	}
	return ImpactUnknown
}

type AnnouncementType string

const (
	TypeAlert              AnnouncementType = "service-alert"
	TypePlannedMaintenance AnnouncementType = "planned-maintenance"
	TypeServiceEnhancement AnnouncementType = "service-enhancement"
	TypeUnknown            AnnouncementType = "unknown"
)

func ParseAnnouncementType(s string) AnnouncementType {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "alert"):
		return TypeAlert
	case strings.Contains(s, "planned"):
		return TypePlannedMaintenance
	case strings.Contains(s, "enhance"):
		return TypeServiceEnhancement
	}
	return TypeUnknown
}

// DailyLogEntry is one line of a broadcast transfer-confirmation daily log.
// The identity tuple plus SlotTime is the primary key; re-importing the
// same key overwrites the row.
type DailyLogEntry struct {
	Source             string
	Service            string
	Satellite          string
	Channel            string
	Segment            string
	SlotTime           time.Time
	ReferenceTime      time.Time
	Filename           string
	ReceivedTimeliness *time.Time
	Remark             Remark
}

// AldaLogEntry is one line of a terrestrial transfer (AFD alda) log.
// DestHost plus Filename is the primary key.
type AldaLogEntry struct {
	DestHost  string
	Filename  string
	SlotTime  time.Time
	Timestamp time.Time
}

// Announcement is a provider outage/maintenance notice. EndTime nil means
// the validity window is open-ended.
type Announcement struct {
	Number           int
	ImportSource     string
	Revision         int
	Subject          string
	StartTime        time.Time
	EndTime          *time.Time
	Impact           Impact
	Type             AnnouncementType
	Status           string
	AffectedEntities []string
}

// Sample is a pipeline-completion observation for one timeslot. Latency nil
// means no output was produced for the slot.
type Sample struct {
	Slot    time.Time
	Latency *float64
}

type SlotAvailability struct {
	Slot      time.Time
	Available bool
}

// QmStats is the monthly summary for one product. All fields are set at
// construction and never updated; a re-run produces a new record. Pointer
// fields distinguish "not computable" from zero.
type QmStats struct {
	CountTimeslots        int
	CountReceivedDailylog int
	CountFailedDailylog   int
	CountReceivedAfd      int
	CountFailedAfd        int

	CountProcessedPytroll       int
	CountProcessedPytrollRelAfd *float64
	CountFailedPytroll          int
	MeanProcessTimePytroll      *float64
	ProcessTimePytrollExceeded  *int

	ProductName        string
	PeriodYear         int
	PeriodMonth        int
	AllowedProcessTime *float64
	Steps              int
}
