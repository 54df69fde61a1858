package own

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Frame
		wantErr bool
	}{
		{
			name: "light on command",
			raw:  "*1*1*15##",
			want: Frame{Kind: KindCommand, Who: "1", What: "1", Where: "15"},
		},
		{
			name: "light off command",
			raw:  "*1*0*15##",
			want: Frame{Kind: KindCommand, Who: "1", What: "0", Where: "15"},
		},
		{
			name: "dimmer level command",
			raw:  "*1*5*23##",
			want: Frame{Kind: KindCommand, Who: "1", What: "5", Where: "23"},
		},
		{
			name: "command with what parameters",
			raw:  "*2*1000#1*41##",
			want: Frame{Kind: KindCommand, Who: "2", What: "1000#1", Where: "41"},
		},
		{
			name: "command to group address",
			raw:  "*1*1*#4##",
			want: Frame{Kind: KindCommand, Who: "1", What: "1", Where: "#4"},
		},
		{
			name: "command with local bus where",
			raw:  "*1*1*15#4#12##",
			want: Frame{Kind: KindCommand, Who: "1", What: "1", Where: "15#4#12"},
		},
		{
			name: "general status request",
			raw:  "*#1*0##",
			want: Frame{Kind: KindStatusRequest, Who: "1", Where: "0"},
		},
		{
			name: "point status request",
			raw:  "*#18*25##",
			want: Frame{Kind: KindStatusRequest, Who: "18", Where: "25"},
		},
		{
			name: "dimension report with one value",
			raw:  "*#1*15*2*50##",
			want: Frame{Kind: KindDimension, Who: "1", Where: "15", Dimension: "2", Values: []string{"50"}},
		},
		{
			name: "dimension report with several values",
			raw:  "*#4*1*14*0250*3##",
			want: Frame{Kind: KindDimension, Who: "4", Where: "1", Dimension: "14", Values: []string{"0250", "3"}},
		},
		{
			name: "dimension request without values",
			raw:  "*#18*51*113##",
			want: Frame{Kind: KindDimension, Who: "18", Where: "51", Dimension: "113"},
		},
		{
			name: "ack",
			raw:  "*#*1##",
			want: Frame{Kind: KindACK},
		},
		{
			name: "nack",
			raw:  "*#*0##",
			want: Frame{Kind: KindNACK},
		},
		{name: "empty string", raw: "", wantErr: true},
		{name: "missing leading star", raw: "1*1*15##", wantErr: true},
		{name: "missing terminator", raw: "*1*1*15", wantErr: true},
		{name: "terminator only", raw: "##", wantErr: true},
		{name: "too few command fields", raw: "*1*15##", wantErr: true},
		{name: "too many command fields", raw: "*1*1*15*9##", wantErr: true},
		{name: "non numeric who", raw: "*x*1*15##", wantErr: true},
		{name: "empty what", raw: "*1**15##", wantErr: true},
		{name: "empty where", raw: "*1*1*##", wantErr: true},
		{name: "where with letters", raw: "*1*1*1a##", wantErr: true},
		{name: "status request missing where", raw: "*#1##", wantErr: true},
		{name: "non numeric dimension", raw: "*#1*15*x##", wantErr: true},
		{name: "empty dimension value", raw: "*#4*1*14**3##", wantErr: true},
		{name: "surrounding whitespace", raw: " *1*1*15## ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFrame(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeFrame(%q) = %v, want error", tt.raw, got)
				}
				if !errors.Is(err, ErrInvalidFrame) {
					t.Errorf("error %v does not wrap ErrInvalidFrame", err)
				}
				var decErr *DecodeError
				if !errors.As(err, &decErr) {
					t.Errorf("error %v is not a *DecodeError", err)
				} else if decErr.Raw != tt.raw {
					t.Errorf("DecodeError.Raw = %q, want %q", decErr.Raw, tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeFrame(%q) unexpected error: %v", tt.raw, err)
			}

			got.Timestamp = tt.want.Timestamp
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeFrame(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	raws := []string{
		"*1*1*15##",
		"*1*0*15##",
		"*2*1000#1*41##",
		"*#1*0##",
		"*#2*0##",
		"*#1*15*2*50##",
		"*#4*1*14*0250*3##",
		"*#*1##",
		"*#*0##",
	}

	for _, raw := range raws {
		f, err := DecodeFrame(raw)
		if err != nil {
			t.Fatalf("DecodeFrame(%q): %v", raw, err)
		}
		if got := f.Encode(); got != raw {
			t.Errorf("Encode(DecodeFrame(%q)) = %q", raw, got)
		}
	}
}

func TestFrameWhatValue(t *testing.T) {
	tests := []struct {
		name string
		f    Frame
		want int
	}{
		{"plain on", NewCommand("1", "1", "15"), 1},
		{"plain off", NewCommand("1", "0", "15"), 0},
		{"dim level", NewCommand("1", "7", "23"), 7},
		{"temporized on", NewCommand("1", "8", "15"), 8},
		{"with parameters", NewCommand("2", "1000#1", "41"), 1000},
		{"non numeric", Frame{Kind: KindCommand, What: "x"}, -1},
		{"absent", Frame{Kind: KindStatusRequest}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.WhatValue(); got != tt.want {
				t.Errorf("WhatValue() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFramePredicates(t *testing.T) {
	ack, _ := DecodeFrame(FrameACK)
	nack, _ := DecodeFrame(FrameNACK)
	cmd, _ := DecodeFrame("*1*1*15##")
	dim, _ := DecodeFrame("*#1*15*2*50##")
	status, _ := DecodeFrame("*#1*0##")

	if !ack.IsAck() || ack.IsNack() || ack.IsReply() {
		t.Errorf("ACK predicates wrong: %+v", ack)
	}
	if !nack.IsNack() || nack.IsAck() || nack.IsReply() {
		t.Errorf("NACK predicates wrong: %+v", nack)
	}
	if !cmd.IsReply() || cmd.IsAck() {
		t.Errorf("command predicates wrong: %+v", cmd)
	}
	if !dim.IsReply() {
		t.Errorf("dimension predicates wrong: %+v", dim)
	}
	if status.IsReply() {
		t.Errorf("status request must not count as reply: %+v", status)
	}
}

func TestFrameConstructors(t *testing.T) {
	if got := NewCommand("1", "1", "15").Encode(); got != "*1*1*15##" {
		t.Errorf("NewCommand encode = %q", got)
	}
	if got := NewStatusRequest("18", WhereGeneral).Encode(); got != "*#18*0##" {
		t.Errorf("NewStatusRequest encode = %q", got)
	}
	if got := NewDimensionReport("1", "15", "2", "50").Encode(); got != "*#1*15*2*50##" {
		t.Errorf("NewDimensionReport encode = %q", got)
	}
}

func TestFrameKindString(t *testing.T) {
	tests := []struct {
		kind FrameKind
		want string
	}{
		{KindCommand, "command"},
		{KindStatusRequest, "status_request"},
		{KindDimension, "dimension"},
		{KindACK, "ack"},
		{KindNACK, "nack"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("FrameKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
