package modem

import (
	"strings"
	"testing"
)

func TestParseDownstream(t *testing.T) {
	t.Parallel()

	// trailing marker field carries junk on some firmwares, it is discarded
	const input = "1^Locked^QAM256^5^600000000^5.5^40.2^10^0^x|+|" +
		"2^Locked^QAM256^6^606000000^5.6^40.1^12^1^x"

	channels, err := ParseDownstream(input)
	if err != nil {
		t.Fatalf("ParseDownstream: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}

	first := channels[0]
	if first.ChannelSelect != 1 || first.LockStatus != "Locked" || first.ChannelType != "QAM256" {
		t.Fatalf("first channel header fields: %+v", first)
	}
	if first.ChannelID != 5 || first.FrequencyHz != 600000000 {
		t.Fatalf("first channel id/frequency: %+v", first)
	}
	if first.PowerDBmV != 5.5 || first.SNRdB != 40.2 {
		t.Fatalf("first channel power/snr: %+v", first)
	}
	if first.CorrectedCodewordsTotal != 10 || first.UncorrectableCodewordsTotal != 0 {
		t.Fatalf("first channel codewords: %+v", first)
	}

	second := channels[1]
	if second.FrequencyHz != 606000000 || second.PowerDBmV != 5.6 || second.SNRdB != 40.1 {
		t.Fatalf("second channel: %+v", second)
	}
}

func TestParseDownstream_MissingFieldFailsWholeParse(t *testing.T) {
	t.Parallel()

	// second record lost its SNR column
	const input = "1^Locked^QAM256^5^600000000^5.5^40.2^10^0^|+|" +
		"2^Locked^QAM256^6^606000000^5.6^12^1^"

	channels, err := ParseDownstream(input)
	if err == nil {
		t.Fatal("expected error")
	}
	if channels != nil {
		t.Fatalf("got partial result %v, want none", channels)
	}
}

func TestParseDownstream_NonNumericFieldFails(t *testing.T) {
	t.Parallel()

	const input = "1^Locked^QAM256^5^sixhundred^5.5^40.2^10^0^"

	if _, err := ParseDownstream(input); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ParseDownstream(strings.ReplaceAll(input, "sixhundred", "600000000")); err != nil {
		t.Fatalf("control parse failed: %v", err)
	}
}

func TestParseUpstream(t *testing.T) {
	t.Parallel()

	const input = "1^Locked^SC-QAM^1^5120^30600000^44.5^|+|" +
		"2^Locked^SC-QAM^2^5120^37000000^44.8^"

	channels, err := ParseUpstream(input)
	if err != nil {
		t.Fatalf("ParseUpstream: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}

	first := channels[0]
	if first.SymbolsPerSec != 5120 || first.FrequencyHz != 30600000 || first.PowerDBmV != 44.5 {
		t.Fatalf("first upstream channel: %+v", first)
	}
}

func TestParseUpstream_WrongFieldCountFails(t *testing.T) {
	t.Parallel()

	if _, err := ParseUpstream("1^Locked^SC-QAM^1^5120^30600000^"); err == nil {
		t.Fatal("expected error")
	}
}
