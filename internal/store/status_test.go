package store

import "testing"

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name string
		f    Facts
		want Status
	}{
		{
			"no local copy",
			Facts{LocalExists: false, RemoteRevision: "r1"},
			StatusRemoteOnly,
		},
		{
			"empty local folder",
			Facts{LocalExists: true, IndexEmpty: true, RemoteRevision: "r1"},
			StatusEmptyLocal,
		},
		{
			"clean and current",
			Facts{LocalExists: true, Dirty: false, HasSynced: true, SyncedRevision: "r1", RemoteRevision: "r1"},
			StatusUpToDate,
		},
		{
			"clean but remote moved on",
			Facts{LocalExists: true, Dirty: false, HasSynced: true, SyncedRevision: "r1", RemoteRevision: "r2"},
			StatusOutOfDate,
		},
		{
			"dirty and current",
			Facts{LocalExists: true, Dirty: true, HasSynced: true, SyncedRevision: "r1", RemoteRevision: "r1"},
			StatusDirty,
		},
		{
			"dirty and stale",
			Facts{LocalExists: true, Dirty: true, HasSynced: true, SyncedRevision: "r1", RemoteRevision: "r2"},
			StatusDirtyAndOutOfDate,
		},
		{
			"remote has no commits",
			Facts{LocalExists: true, Dirty: false, HasSynced: true, SyncedRevision: "r1", RemoteRevision: ""},
			StatusUpToDate,
		},
		{
			"missing ledger marker reads as stale",
			Facts{LocalExists: true, Dirty: false, HasSynced: false, RemoteRevision: "r1"},
			StatusOutOfDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.f)
			if got != tt.want {
				t.Errorf("Compute(%+v) = %s, want %s", tt.f, got, tt.want)
			}
			// Purity: recomputation with unchanged inputs is identical.
			if again := Compute(tt.f); again != got {
				t.Errorf("Compute is not pure: %s then %s", got, again)
			}
		})
	}
}

func TestStatusIsDirty(t *testing.T) {
	if !StatusDirty.IsDirty() || !StatusDirtyAndOutOfDate.IsDirty() {
		t.Error("dirty statuses should report dirty")
	}
	if StatusUpToDate.IsDirty() || StatusRemoteOnly.IsDirty() {
		t.Error("clean statuses should not report dirty")
	}
}
