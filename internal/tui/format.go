package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// renders a frame as one log line; empty means nothing worth showing
func describe(f Frame) string {
	switch f.Type {
	case typeUpdate:
		return stamp(f.Timestamp) + participantStyle.Render(f.UserID) + " " + updateStyle.Render(updateText(f.Data))

	case typeCursor, typeSelection:
		return stamp(f.Timestamp) + signalStyle.Render(fmt.Sprintf("%s %s %s", f.UserID, f.Type, compact(f.Data)))

	case typePresence:
		var p presenceData
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return ""
		}

		return presenceStyle.Render("present: " + names(p.Participants))

	case typeError:
		return errorStyle.Render(fmt.Sprintf("error %s: %s", f.Code, f.Message))

	case typeServerShutdown:
		var s shutdownData
		_ = json.Unmarshal(f.Data, &s)
		return warnStyle.Render("server shutting down: " + s.Reason)

	default:
		return ""
	}
}

// extracts the text field roomwatch sends, falling back to the raw payload
func updateText(data json.RawMessage) string {
	var body struct {
		Text *string `json:"text"`
	}

	if err := json.Unmarshal(data, &body); err == nil && body.Text != nil {
		return *body.Text
	}

	return compact(data)
}

func compact(data json.RawMessage) string {
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "null"
	}

	return s
}

func names(ps []participant) string {
	if len(ps) == 0 {
		return "nobody"
	}

	out := make([]string, len(ps))
	for i, p := range ps {
		if p.DisplayName != "" && p.DisplayName != p.UserID {
			out[i] = fmt.Sprintf("%s (%s)", p.DisplayName, p.UserID)
		} else {
			out[i] = p.UserID
		}
	}

	return strings.Join(out, ", ")
}

func stamp(ms int64) string {
	if ms <= 0 {
		return ""
	}

	return helpStyle.Render(time.UnixMilli(ms).Format("15:04:05")) + " "
}
