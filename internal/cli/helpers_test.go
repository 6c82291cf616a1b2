package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/speleokit/speleosync/internal/codec"
	"github.com/speleokit/speleosync/internal/lockclient"
	"github.com/speleokit/speleosync/internal/manager"
	"github.com/speleokit/speleosync/internal/remote"
)

func TestFormatForEntry(t *testing.T) {
	tests := []struct {
		path    string
		want    codec.Format
		wantErr bool
	}{
		{"/exports/cave.mak", codec.FormatCompass, false},
		{"/exports/CAVE.MAK", codec.FormatCompass, false},
		{"/exports/cave.tml", codec.FormatAriane, false},
		{"/exports/cave.tmlu", codec.FormatAriane, false},
		{"/exports/cave.dat", "", true},
		{"/exports/cave", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := formatForEntry(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("formatForEntry(%q): expected error, got %v", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("formatForEntry(%q): unexpected error: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("formatForEntry(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unauthorized", remote.ErrUnauthorized, "spsync login"},
		{"lock conflict", remote.ErrLockConflict, "another collaborator"},
		{"busy", manager.ErrBusy, "try again"},
		{"network", &remote.NetworkError{Op: "x", Err: errors.New("refused")}, "check your connection"},
		{"passthrough", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := friendlyError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("friendlyError must keep the original error in the chain")
			}
			if !strings.Contains(got.Error(), tt.want) {
				t.Errorf("friendlyError(%v) = %q, want it to mention %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestDescribeLock(t *testing.T) {
	if got := describeLock(lockclient.Lock{State: lockclient.Unlocked}); got != "unlocked" {
		t.Errorf("describeLock(unlocked) = %q", got)
	}
	got := describeLock(lockclient.Lock{State: lockclient.LockedByOther, Holder: "rival@example.org"})
	if !strings.Contains(got, "rival@example.org") {
		t.Errorf("describeLock should name the holder, got %q", got)
	}
}

func TestOrNone(t *testing.T) {
	if orNone("") != "(none)" {
		t.Error("empty revision should render as (none)")
	}
	if orNone("rev-1") != "rev-1" {
		t.Error("a revision should render as-is")
	}
}
