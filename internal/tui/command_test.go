package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"q", Command{Name: "q"}},
		{"  Search  pallet damaged ", Command{Name: "search", Args: "pallet damaged"}},
		{"open u2", Command{Name: "open", Args: "u2"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseCommand(tt.in); got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    Command
		wantErr string
	}{
		{in: "s pallet", want: Command{Name: "search", Args: "pallet"}},
		{in: "q", want: Command{Name: "quit"}},
		{in: "refresh", want: Command{Name: "refresh"}},
		{in: "chat", wantErr: "usage: :chat <name>"},
		{in: "logout now", wantErr: ":logout takes no arguments"},
		{in: "frobnicate", wantErr: `unknown command "frobnicate"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCommand(tt.in).Resolve()
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve = %+v, want %+v", got, tt.want)
			}
		})
	}
}
