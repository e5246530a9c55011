package tui

import (
	"testing"
)

func TestCommandParser(t *testing.T) {
	parser := NewCommandParser()

	tests := []struct {
		input    string
		wantType CommandType
		wantNil  bool
		check    func(t *testing.T, cmd *Command)
	}{
		{input: "a lighthouse in a storm", wantNil: true},
		{input: "", wantNil: true},
		{input: "/reset", wantType: CommandTypeReset},
		{input: "  /NEW  ", wantType: CommandTypeReset},
		{input: "/quit", wantType: CommandTypeQuit},
		{input: "/q", wantType: CommandTypeQuit},
		{input: "/help", wantType: CommandTypeHelp},
		{input: "/SAVE", wantType: CommandTypeSave},
		{input: "/save now", wantType: CommandTypeUnknown},
		{
			input:    "/download",
			wantType: CommandTypeDownload,
			check: func(t *testing.T, cmd *Command) {
				if cmd.Path != "" {
					t.Errorf("Path = %q, want empty", cmd.Path)
				}
			},
		},
		{
			input:    "/download ~/Pictures/whispers",
			wantType: CommandTypeDownload,
			check: func(t *testing.T, cmd *Command) {
				if cmd.Path != "~/Pictures/whispers" {
					t.Errorf("Path = %q", cmd.Path)
				}
			},
		},
		{
			input:    "/goto 3",
			wantType: CommandTypeGoto,
			check: func(t *testing.T, cmd *Command) {
				if cmd.Index != 3 || cmd.Err != "" {
					t.Errorf("Index = %d, Err = %q", cmd.Index, cmd.Err)
				}
			},
		},
		{
			input:    "/goto zero",
			wantType: CommandTypeGoto,
			check: func(t *testing.T, cmd *Command) {
				if cmd.Err == "" {
					t.Error("expected usage error")
				}
			},
		},
		{
			input:    "/goto 0",
			wantType: CommandTypeGoto,
			check: func(t *testing.T, cmd *Command) {
				if cmd.Err == "" {
					t.Error("expected usage error for index 0")
				}
			},
		},
		{
			input:    "/temp 0.3",
			wantType: CommandTypeTemp,
			check: func(t *testing.T, cmd *Command) {
				if cmd.Temperature != 0.3 {
					t.Errorf("Temperature = %v", cmd.Temperature)
				}
			},
		},
		{
			input:    "/temperature NaN",
			wantType: CommandTypeTemp,
			check: func(t *testing.T, cmd *Command) {
				if cmd.Err == "" {
					t.Error("expected usage error for NaN")
				}
			},
		},
		{
			input:    "/dance",
			wantType: CommandTypeUnknown,
			check: func(t *testing.T, cmd *Command) {
				if cmd.Err == "" {
					t.Error("expected error for unknown command")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd := parser.Parse(tt.input)
			if tt.wantNil {
				if cmd != nil {
					t.Fatalf("Parse(%q) = %+v, want nil", tt.input, cmd)
				}
				return
			}
			if cmd == nil {
				t.Fatalf("Parse(%q) = nil", tt.input)
			}
			if cmd.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", FormatCommandType(cmd.Type), FormatCommandType(tt.wantType))
			}
			if tt.check != nil {
				tt.check(t, cmd)
			}
		})
	}
}
