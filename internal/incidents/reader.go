package incidents

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"satqm/internal/model"
)

const unsTimeFormat = "2006-01-02T15:04:05"

// ImportSourceUNS tags announcements read from EUMETSAT User Notification
// Service exports.
const ImportSourceUNS = "EUMETSAT_UNS"

type unsDocument struct {
	Announcements []unsAnnouncement `xml:"announcement"`
}

type unsAnnouncement struct {
	Number        int               `xml:"ann-number,attr"`
	Revision      int               `xml:"ann-revision,attr"`
	Subject       string            `xml:"ann-subject,attr"`
	Type          string            `xml:"ann-type,attr"`
	Impact        string            `xml:"impact,attr"`
	Status        string            `xml:"status,attr"`
	StartTime     string            `xml:"start-time,attr"`
	EndTime       string            `xml:"end-time,attr"`
	Satellites    []string          `xml:"satellites>satellite"`
	ServiceGroups []unsServiceGroup `xml:"services>operational-service-group"`
}

type unsServiceGroup struct {
	Services []unsService `xml:"operational-service"`
}

type unsService struct {
	Name   string        `xml:"name,attr"`
	Groups []namedEntity `xml:"product-group"`
}

type namedEntity struct {
	Name string `xml:"name,attr"`
}

type Reader struct {
	Logger *slog.Logger
}

// ReadFile parses a EUMETSAT UNS xml export into announcements. Affected
// satellites, operational services and product groups are collected into a
// single upper-cased entity list.
func (r *Reader) ReadFile(path string) ([]model.Announcement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc unsDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("incidents: parse %s: %w", path, err)
	}

	anns := make([]model.Announcement, 0, len(doc.Announcements))
	for _, raw := range doc.Announcements {
		start, err := time.ParseInLocation(unsTimeFormat, raw.StartTime, time.UTC)
		if err != nil {
			r.logger().Warn("skipping announcement with bad start time",
				"file", path, "number", raw.Number, "start_time", raw.StartTime)
			continue
		}
		ann := model.Announcement{
			Number:       raw.Number,
			ImportSource: ImportSourceUNS,
			Revision:     raw.Revision,
			Subject:      raw.Subject,
			StartTime:    start,
			Impact:       model.ParseImpact(raw.Impact),
			Type:         model.ParseAnnouncementType(raw.Type),
			Status:       raw.Status,
		}
		if raw.Impact == "" {
			ann.Impact = model.ImpactNone
		}
		if raw.EndTime != "" {
			end, err := time.ParseInLocation(unsTimeFormat, raw.EndTime, time.UTC)
			if err != nil {
				r.logger().Warn("ignoring bad end time",
					"file", path, "number", raw.Number, "end_time", raw.EndTime)
			} else {
				ann.EndTime = &end
			}
		}
		for _, sat := range raw.Satellites {
			ann.AffectedEntities = appendEntity(ann.AffectedEntities, sat)
		}
		for _, group := range raw.ServiceGroups {
			for _, svc := range group.Services {
				ann.AffectedEntities = appendEntity(ann.AffectedEntities, svc.Name)
				for _, pg := range svc.Groups {
					ann.AffectedEntities = appendEntity(ann.AffectedEntities, pg.Name)
				}
			}
		}
		anns = append(anns, ann)
	}
	return anns, nil
}

func appendEntity(entities []string, name string) []string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return entities
	}
	return append(entities, name)
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
