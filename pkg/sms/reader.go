package sms

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// smsElement mirrors the <sms/> element of an SMS backup export. Only the
// attributes the pipeline contracts on are mapped; everything else in the
// element is ignored.
type smsElement struct {
	Address string `xml:"address,attr"`
	Date    string `xml:"date,attr"`
	Body    string `xml:"body,attr"`
}

// ReadBackup decodes an SMS backup XML stream into raw records. Elements
// with an unusable date or an empty body are returned separately as
// rejected entries rather than failing the whole file.
func ReadBackup(r io.Reader) ([]RawRecord, []Rejected, error) {
	dec := xml.NewDecoder(r)

	var records []RawRecord
	var rejected []Rejected

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("decode sms backup: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "sms" {
			continue
		}

		var el smsElement
		if err := dec.DecodeElement(&el, &start); err != nil {
			return nil, nil, fmt.Errorf("decode sms element: %w", err)
		}

		rec := RawRecord{
			SenderAddress: strings.TrimSpace(el.Address),
			Body:          el.Body,
		}

		ts, err := strconv.ParseInt(strings.TrimSpace(el.Date), 10, 64)
		if err != nil {
			rejected = append(rejected, Rejected{Record: rec, Reason: "invalid_date_attr"})
			continue
		}
		rec.TimestampMs = ts

		if strings.TrimSpace(rec.Body) == "" {
			rejected = append(rejected, Rejected{Record: rec, Reason: "empty_body"})
			continue
		}

		records = append(records, rec)
	}

	return records, rejected, nil
}

// ReadBackupFile reads an SMS backup export from disk.
func ReadBackupFile(path string) ([]RawRecord, []Rejected, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sms backup: %w", err)
	}
	defer f.Close()

	return ReadBackup(f)
}
