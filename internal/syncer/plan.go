package syncer

import (
	"os"
	"time"
)

// ActionKind is the top-level decision for one candidate path.
type ActionKind int

const (
	Skip ActionKind = iota
	Transfer
)

// Direction of a transfer.
type Direction int

const (
	Download Direction = iota
	Upload
)

func (d Direction) String() string {
	if d == Upload {
		return "upload"
	}
	return "download"
}

// Reason explains why a transfer was planned.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNew
	ReasonNewer
	ReasonReplace
)

func (r Reason) String() string {
	switch r {
	case ReasonNew:
		return "new"
	case ReasonNewer:
		return "newer"
	case ReasonReplace:
		return "replace"
	default:
		return "none"
	}
}

// Action is the planned outcome for a single file.
type Action struct {
	Kind      ActionKind
	Direction Direction
	Reason    Reason
}

// Verb is the word used when logging the action.
func (a Action) Verb() string {
	if a.Kind == Skip {
		return "Skipping"
	}
	switch {
	case a.Direction == Download && a.Reason == ReasonNew:
		return "Downloading"
	case a.Direction == Download:
		return "Updating"
	case a.Reason == ReasonReplace:
		return "Replacing"
	default:
		return "Uploading"
	}
}

// planDownload decides what to do with a remote file given the local file at
// its mapped path, or nil if there is none.
// The remote copy wins only when strictly newer than the local file. A zero
// remote timestamp cannot be compared and always transfers.
func planDownload(remoteModified time.Time, local os.FileInfo) Action {
	if local == nil {
		return Action{Kind: Transfer, Direction: Download, Reason: ReasonNew}
	}
	if !remoteModified.IsZero() && !remoteModified.After(local.ModTime()) {
		return Action{Kind: Skip, Direction: Download}
	}
	return Action{Kind: Transfer, Direction: Download, Reason: ReasonNewer}
}

// planUpload decides what to do with a local file given the remote object
// already stored at its key, or the zero time and false if there is none.
// An existing object modified at or after the local mtime is kept.
func planUpload(remoteModified time.Time, exists bool, localModified time.Time) Action {
	if !exists {
		return Action{Kind: Transfer, Direction: Upload, Reason: ReasonNew}
	}
	if !remoteModified.Before(localModified) {
		return Action{Kind: Skip, Direction: Upload}
	}
	return Action{Kind: Transfer, Direction: Upload, Reason: ReasonReplace}
}
