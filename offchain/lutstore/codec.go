package lutstore

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/Abdullah1738/juno-luts/lut"
)

const recordVersion = 1

// record is the stored form of a table. Pubkeys and states encode as
// text through their TextMarshaler, so records stay diagnosable with any
// CBOR tool.
type record struct {
	Version int        `cbor:"v"`
	Table   *lut.Table `cbor:"t"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("lutstore: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("lutstore: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeTable(t *lut.Table) ([]byte, error) {
	return encMode.Marshal(record{Version: recordVersion, Table: t})
}

func decodeTable(data []byte) (*lut.Table, error) {
	var rec record
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode table record: %w", err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("unsupported table record version %d", rec.Version)
	}
	if rec.Table == nil {
		return nil, fmt.Errorf("table record is empty")
	}
	return rec.Table, nil
}
