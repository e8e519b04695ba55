package syncer

import (
	"encoding/json"

	"lg/fitai-go-api/internal/model"
)

// mergeLocalWins overlays the local document on the remote one. Every
// top-level key present locally wins; keys only the remote has are carried
// over. The result keeps the local revision. merged is false when the
// remote contributed nothing.
func mergeLocalWins(local, remote model.Document) (out model.Document, merged bool, err error) {
	var l map[string]json.RawMessage
	if err := json.Unmarshal(local.Payload, &l); err != nil {
		return local, false, err
	}
	var r map[string]json.RawMessage
	if err := json.Unmarshal(remote.Payload, &r); err != nil {
		// an unreadable remote document is simply overwritten
		return local, false, nil
	}

	for k, v := range r {
		if _, ok := l[k]; !ok {
			l[k] = v
			merged = true
		}
	}
	if !merged {
		return local, false, nil
	}

	payload, err := json.Marshal(l)
	if err != nil {
		return local, false, err
	}
	out = local
	out.Payload = payload
	return out, true, nil
}
