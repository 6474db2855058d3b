package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// RecentEvent is one automation event as returned to the dashboard.
type RecentEvent struct {
	EventType string `json:"event_type"`
	Severity  string `json:"severity,omitempty"`
	Field     string `json:"field"`
	Value     any    `json:"value"`
	Time      string `json:"time"`
}

type recentQueryParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
	EventType string
}

func parseRecent(r *http.Request, defMin, defLim, defTOms int) recentQueryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	p := recentQueryParams{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
	switch t := strings.TrimSpace(q.Get("type")); t {
	case EventCommand, EventAlert, EventVPD, EventSafety:
		p.EventType = t
	}
	return p
}

// buildFlux selects the display field of each event type.
func buildFlux(bucket string, p recentQueryParams) string {
	filter := `r.event_type =~ /^automation\./`
	if p.EventType != "" {
		filter = fmt.Sprintf("r.event_type == %q", p.EventType)
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and %s)
  |> filter(fn: (r) => r._field == "command" or r._field == "title" or r._field == "reason" or r._field == "vpd")
  |> keep(columns: ["_time","_value","_field","event_type","severity"])
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, p.Minutes, MeasurementEvent, filter, p.Limit)
}

// NewRecentEventsHandler serves GET ?minutes=60&limit=50[&type=automation.alert].
// Query failures return an empty list with an X-Error header.
func NewRecentEventsHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseRecent(r, 60, 50, 2000)
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := influx.QueryAPI(org).Query(ctx, buildFlux(bucket, p))
		if err != nil {
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer func() { _ = res.Close() }()

		out := make([]RecentEvent, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			ev := RecentEvent{
				Field: rec.Field(),
				Value: rec.Value(),
				Time:  rec.Time().UTC().Format(time.RFC3339),
			}
			if v, ok := rec.ValueByKey("event_type").(string); ok {
				ev.EventType = v
			}
			if v, ok := rec.ValueByKey("severity").(string); ok {
				ev.Severity = v
			}
			out = append(out, ev)
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}
