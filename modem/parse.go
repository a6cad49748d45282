// Package modem scrapes channel diagnostics from a cable modem's HNAP
// management endpoint.
package modem

import (
	"fmt"
	"strconv"
	"strings"
)

// Channel records arrive as "|+|"-separated records of "^"-separated
// positional fields, with a trailing marker that leaves one empty field
// per record. The field order comes from the modem's connectionstatus.js.
const (
	recordSep = "|+|"
	fieldSep  = "^"

	downstreamFields = 10 // 9 values + trailing marker
	upstreamFields   = 8  // 7 values + trailing marker
)

// DownstreamChannel is a snapshot of one downstream RF channel's stats.
type DownstreamChannel struct {
	ChannelSelect               int
	LockStatus                  string
	ChannelType                 string
	ChannelID                   int
	FrequencyHz                 int64
	PowerDBmV                   float64
	SNRdB                       float64
	CorrectedCodewordsTotal     int64
	UncorrectableCodewordsTotal int64
}

// UpstreamChannel is a snapshot of one upstream RF channel's stats.
type UpstreamChannel struct {
	ChannelSelect int
	LockStatus    string
	ChannelType   string
	ChannelID     int
	SymbolsPerSec int64
	FrequencyHz   int64
	PowerDBmV     float64
}

// ParseDownstream decodes the downstream channel list. A single malformed
// record (wrong field count, non-numeric value) fails the whole parse.
func ParseDownstream(s string) ([]DownstreamChannel, error) {
	var channels []DownstreamChannel
	for _, record := range strings.Split(s, recordSep) {
		fields := strings.Split(record, fieldSep)
		if len(fields) != downstreamFields {
			return nil, fmt.Errorf("downstream record %q: got %d fields, want %d",
				record, len(fields), downstreamFields)
		}

		var (
			ch  DownstreamChannel
			err error
		)
		if ch.ChannelSelect, err = atoi(fields[0], "channel select"); err != nil {
			return nil, err
		}
		ch.LockStatus = fields[1]
		ch.ChannelType = fields[2]
		if ch.ChannelID, err = atoi(fields[3], "channel id"); err != nil {
			return nil, err
		}
		if ch.FrequencyHz, err = atoi64(fields[4], "frequency"); err != nil {
			return nil, err
		}
		if ch.PowerDBmV, err = atof(fields[5], "power"); err != nil {
			return nil, err
		}
		if ch.SNRdB, err = atof(fields[6], "snr"); err != nil {
			return nil, err
		}
		if ch.CorrectedCodewordsTotal, err = atoi64(fields[7], "corrected codewords"); err != nil {
			return nil, err
		}
		if ch.UncorrectableCodewordsTotal, err = atoi64(fields[8], "uncorrectable codewords"); err != nil {
			return nil, err
		}

		channels = append(channels, ch)
	}
	return channels, nil
}

// ParseUpstream decodes the upstream channel list with the same all-or-
// nothing behavior as ParseDownstream.
func ParseUpstream(s string) ([]UpstreamChannel, error) {
	var channels []UpstreamChannel
	for _, record := range strings.Split(s, recordSep) {
		fields := strings.Split(record, fieldSep)
		if len(fields) != upstreamFields {
			return nil, fmt.Errorf("upstream record %q: got %d fields, want %d",
				record, len(fields), upstreamFields)
		}

		var (
			ch  UpstreamChannel
			err error
		)
		if ch.ChannelSelect, err = atoi(fields[0], "channel select"); err != nil {
			return nil, err
		}
		ch.LockStatus = fields[1]
		ch.ChannelType = fields[2]
		if ch.ChannelID, err = atoi(fields[3], "channel id"); err != nil {
			return nil, err
		}
		if ch.SymbolsPerSec, err = atoi64(fields[4], "symbol rate"); err != nil {
			return nil, err
		}
		if ch.FrequencyHz, err = atoi64(fields[5], "frequency"); err != nil {
			return nil, err
		}
		if ch.PowerDBmV, err = atof(fields[6], "power"); err != nil {
			return nil, err
		}

		channels = append(channels, ch)
	}
	return channels, nil
}

func atoi(s, what string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", what, s, err)
	}
	return v, nil
}

func atoi64(s, what string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", what, s, err)
	}
	return v, nil
}

func atof(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", what, s, err)
	}
	return v, nil
}
