package api

import pkgerrors "github.com/absmach/profiler/pkg/errors"

type snapshotReq struct {
	index int
}

func (r *snapshotReq) validate() error {
	if r.index < 0 {
		return pkgerrors.ErrIndexOutOfRange
	}

	return nil
}
