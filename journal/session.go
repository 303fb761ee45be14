package journal

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
	"time"
)

// SessionReport summarizes one trading session for the org journal.
type SessionReport struct {
	SessionID string
	Mode      string // paper | bitget
	Started   time.Time
	Ended     time.Time

	StartEquity float64
	EndEquity   float64

	Positions int
	Wins      int
	Losses    int

	ClosedByTarget int
	ClosedByStop   int
	ClosedByTime   int

	NetPnL    float64
	ReturnPct float64
	// WinRate is a fraction; the template scales it.
	WinRate float64

	OrgPath string

	Notes       []string
	NextActions []string
}

// Summarize folds the archived positions of a session into the report's
// counters. Break-even exits count toward neither wins nor losses.
func (v *SessionReport) Summarize(recs []PositionRecord) {
	for _, r := range recs {
		v.Positions++
		if r.RealizedPnL > 0 {
			v.Wins++
		} else if r.RealizedPnL < 0 {
			v.Losses++
		}
		v.NetPnL += r.RealizedPnL

		switch r.Reason {
		case "target":
			v.ClosedByTarget++
		case "stop":
			v.ClosedByStop++
		case "time_limit":
			v.ClosedByTime++
		}
	}
	if v.StartEquity > 0 {
		v.ReturnPct = v.NetPnL / v.StartEquity * 100
	}
	if decided := v.Wins + v.Losses; decided > 0 {
		v.WinRate = float64(v.Wins) / float64(decided)
	}
}

var sessionOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

// WriteOrg renders the report and appends it to the org journal at
// v.OrgPath. Each session adds one top-level heading, so the file grows
// into a running trading journal.
func (v *SessionReport) WriteOrg() error {
	t, err := template.New("session").Funcs(sessionOrgFuncs).Parse(SessionOrgTemplate)
	if err != nil {
		return fmt.Errorf("parse session template: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := t.Execute(buf, v); err != nil {
		return fmt.Errorf("render session report: %w", err)
	}

	f, err := os.OpenFile(v.OrgPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open org journal: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("append session report: %w", err)
	}
	return f.Close()
}

const SessionOrgTemplate = `
* SESSION: {{.Mode}} {{(orTime .Started).Format "2006-01-02"}}
:PROPERTIES:
:SESSION_ID:  {{if .SessionID}}{{.SessionID}}{{else}}(session-id?){{end}}
:MODE:        {{.Mode}}
:STARTED:     [{{(orTime .Started).Format "2006-01-02 Mon 15:04"}}]
:ENDED:       [{{(orTime .Ended).Format "2006-01-02 Mon 15:04"}}]
:START_EQ:    {{printf "%.2f" .StartEquity}}
:END_EQ:      {{printf "%.2f" .EndEquity}}
:NET_PNL:     {{printf "%.2f" .NetPnL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:POSITIONS:   {{.Positions}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:END:

** Performance Summary
- Net P/L:   *{{printf "%.2f" .NetPnL}}*
- Return:    *{{printf "%.2f" .ReturnPct}}%*
- Win Rate:  *{{printf "%.2f" (mul100 .WinRate)}}%*

** Exit Distribution
| Outcome    | Count |
|------------+-------|
| Target     | {{.ClosedByTarget}} |
| Stop       | {{.ClosedByStop}} |
| Time limit | {{.ClosedByTime}} |
| Total      | {{.Positions}} |

{{- if .Notes }}
** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}

{{- if .NextActions }}
** Notes / Next Actions
{{- range .NextActions }}
- [ ] {{.}}
{{- end }}
{{- end }}
`
