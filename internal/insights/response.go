package insights

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Page is one parsed page of insights rows.
type Page struct {
	Rows []RawInsightRow
	// Next is the URL of the following page; empty when the cursor is
	// exhausted.
	Next string
	// ParseWarnings describes rows dropped during normalization, one entry
	// per discarded row.
	ParseWarnings []string
}

type wireEnvelope struct {
	Data   []wireRow  `json:"data"`
	Paging *wirePager `json:"paging"`
	Error  *wireError `json:"error"`
}

type wirePager struct {
	Next    string `json:"next"`
	Cursors *struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
}

type wireError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
	TraceID string `json:"fbtrace_id"`
}

// ParseResponse decodes an upstream HTTP response body. A non-2xx status or
// an error envelope yields a classified *APIError; otherwise the parsed page
// is returned. Rows that fail normalization are dropped with their parse
// error collected into warnings rather than failing the page.
func ParseResponse(status int, header http.Header, body []byte) (*Page, []string, error) {
	var envelope wireEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		if status >= 400 {
			return nil, nil, classifyResponse(status, nil, usageRetryAfter(header))
		}
		return nil, nil, &APIError{Kind: KindAPI, StatusCode: status,
			Message: fmt.Sprintf("unparseable response body: %v", err), cause: err}
	}

	if envelope.Error != nil || status >= 400 {
		return nil, nil, classifyResponse(status, envelope.Error, usageRetryAfter(header))
	}

	page := &Page{}
	var warnings []string
	for _, wr := range envelope.Data {
		row, err := wr.normalize()
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		page.Rows = append(page.Rows, row)
	}
	if envelope.Paging != nil {
		page.Next = envelope.Paging.Next
	}
	page.ParseWarnings = warnings
	return page, warnings, nil
}

// Usage headers sent by the upstream API alongside rate-limit responses.
const (
	headerBusinessUsage = "X-Business-Use-Case-Usage"
	headerAppUsage      = "X-App-Usage"
)

type usagePayload struct {
	CallCount                   int `json:"call_count"`
	TotalTime                   int `json:"total_time"`
	TotalCPUTime                int `json:"total_cputime"`
	EstimatedTimeToRegainAccess int `json:"estimated_time_to_regain_access"`
}

// usageRetryAfter extracts the estimated-seconds-to-regain-access value from
// the usage headers, if present.
func usageRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	// Business usage: {"<account-id>": [{...}]}
	if raw := header.Get(headerBusinessUsage); raw != "" {
		var perAccount map[string][]usagePayload
		if err := json.Unmarshal([]byte(raw), &perAccount); err == nil {
			for _, entries := range perAccount {
				for _, u := range entries {
					if u.EstimatedTimeToRegainAccess > 0 {
						return time.Duration(u.EstimatedTimeToRegainAccess) * time.Second
					}
				}
			}
		}
	}
	// App usage: a single object.
	if raw := header.Get(headerAppUsage); raw != "" {
		var u usagePayload
		if err := json.Unmarshal([]byte(raw), &u); err == nil && u.EstimatedTimeToRegainAccess > 0 {
			return time.Duration(u.EstimatedTimeToRegainAccess) * time.Second
		}
	}
	return 0
}
