package wxcloud

import (
	"bytes"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"regadmin/internal/registration"
)

// The tcb API is not consistent about result shapes: data may be a
// JSON-encoded string, an array of JSON-encoded strings, or structured
// objects, and dates arrive as RFC3339 strings, epoch milliseconds or
// {"$date": ms} wrappers. Everything here degrades instead of erroring:
// an element that cannot be parsed into an object is dropped.

// cloudTime accepts the date encodings the cloud API emits.
type cloudTime struct {
	time.Time
}

func (t *cloudTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	if b[0] == '{' {
		var wrapper struct {
			Date json.Number `json:"$date"`
		}
		if err := json.Unmarshal(b, &wrapper); err != nil {
			return err
		}
		ms, err := wrapper.Date.Int64()
		if err != nil {
			return err
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// cloudRecord is the wire shape of one registration document.
type cloudRecord struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	School       string    `json:"school"`
	WorkUnit     string    `json:"workUnit"`
	Major        string    `json:"major"`
	Status       string    `json:"status"`
	ReviewReason string    `json:"reviewReason"`
	CreateTime   cloudTime `json:"createTime"`
	UpdateTime   cloudTime `json:"updateTime"`
}

func (c cloudRecord) toRecord() registration.Record {
	status := registration.Status(c.Status)
	if !registration.ValidStatus(status) {
		status = registration.StatusPending
	}
	return registration.Record{
		ID:           c.ID,
		Name:         c.Name,
		Phone:        c.Phone,
		Email:        c.Email,
		School:       c.School,
		WorkUnit:     c.WorkUnit,
		Major:        c.Major,
		Status:       status,
		ReviewReason: c.ReviewReason,
		CreateTime:   c.CreateTime.Time,
		UpdateTime:   c.UpdateTime.Time,
	}
}

// rawElements flattens resp.Data into individual elements, unwrapping a
// top-level JSON-encoded string when present.
func rawElements(data json.RawMessage) []json.RawMessage {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			log.Printf("cloud payload string unwrap failed: %v", err)
			return nil
		}
		return rawElements(json.RawMessage(s))
	}
	if data[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			log.Printf("cloud payload array decode failed: %v", err)
			return nil
		}
		return elems
	}
	return []json.RawMessage{data}
}

// decodeRecords parses every element it can and silently drops the
// rest; parse failures never reach the caller.
func decodeRecords(data json.RawMessage) []registration.Record {
	var records []registration.Record
	for _, elem := range rawElements(data) {
		elem = bytes.TrimSpace(elem)
		if len(elem) == 0 {
			continue
		}
		if elem[0] == '"' {
			var s string
			if err := json.Unmarshal(elem, &s); err != nil {
				continue
			}
			elem = bytes.TrimSpace(json.RawMessage(s))
		}
		if len(elem) == 0 || elem[0] != '{' {
			continue
		}
		var cr cloudRecord
		if err := json.Unmarshal(elem, &cr); err != nil {
			log.Printf("dropping malformed cloud record: %v", err)
			continue
		}
		records = append(records, cr.toRecord())
	}
	return records
}
