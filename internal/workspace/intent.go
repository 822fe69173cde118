package workspace

import (
	"errors"
	"fmt"
)

// ErrUnknownOp is returned for an intent whose op is not recognised.
var ErrUnknownOp = errors.New("unknown op")

// Intent is one user action, as sent by a client.
type Intent struct {
	ID      string `json:"id,omitempty"`
	Op      string `json:"op"`
	Path    string `json:"path,omitempty"`
	Name    string `json:"name,omitempty"`
	Parent  string `json:"parent,omitempty"`
	Content string `json:"content,omitempty"`
}

// Intent ops.
const (
	OpCreateFile   = "createFile"
	OpCreateFolder = "createFolder"
	OpRename       = "rename"
	OpMove         = "move"
	OpDelete       = "delete"
	OpOpen         = "open"
	OpClose        = "close"
	OpActivate     = "activate"
	OpSelect       = "select"
	OpEdit         = "edit"
	OpUpdate       = "update"
	OpSave         = "save"
)

// Apply runs in and returns the state it produced. Intent and snapshot are
// taken under one lock, so the snapshot reflects exactly this intent.
func (w *Workspace) Apply(in Intent) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	switch in.Op {
	case OpCreateFile:
		err = w.createFile(in.Parent, in.Name, in.Content)
	case OpCreateFolder:
		err = w.createFolder(in.Parent, in.Name)
	case OpRename:
		_, err = w.rename(in.Path, in.Name)
	case OpMove:
		_, err = w.move(in.Path, in.Parent)
	case OpDelete:
		err = w.delete(in.Path)
	case OpOpen:
		err = w.open(in.Path)
	case OpClose:
		err = w.closeTab(in.Path)
	case OpActivate:
		err = w.activate(in.Path)
	case OpSelect:
		err = w.selectPath(in.Path)
	case OpEdit:
		err = w.edit(in.Path, in.Content)
	case OpUpdate:
		err = w.updateContent(in.Path, in.Content)
	case OpSave:
		if w.closed {
			err = ErrClosed
		} else {
			_, err = w.save()
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOp, in.Op)
	}
	if err != nil {
		w.logger.Debug().Err(err).Str("op", in.Op).Str("path", in.Path).Msg("intent rejected")
		return Snapshot{}, err
	}
	return w.snapshot(), nil
}
