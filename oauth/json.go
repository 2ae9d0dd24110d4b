package oauth

import (
	"encoding/json"
	"io"
)

const maxProfileBody = 1 << 20

func decodeJSON(r io.Reader, dst any) error {
	return json.NewDecoder(io.LimitReader(r, maxProfileBody)).Decode(dst)
}
