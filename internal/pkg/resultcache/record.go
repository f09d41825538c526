package resultcache

import (
	"bytes"
	"math"
	"strconv"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/keboola/devgate/internal/pkg/encoding/json"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// ErrCorruptRecord is returned for a record which cannot be interpreted, it is handled as a miss.
var ErrCorruptRecord = errors.New("corrupt run record")

// Record is the last run of a task.
type Record struct {
	At     time.Time `json:"at"`
	Result Verdict   `json:"result"`
}

func (r Record) Passed() bool {
	return r.Result == VerdictPass
}

// storedRecord is the persisted form, "at" is in epoch milliseconds.
type storedRecord struct {
	At     int64   `json:"at"`
	Result Verdict `json:"result"`
}

// rawRecord accepts the current form and the legacy form {"at": ..., "pass": true|false}.
// The "at" field may also be an ISO-8601 string.
type rawRecord struct {
	At     json.RawMessage `json:"at"`
	Result *string         `json:"result"`
	Pass   *bool           `json:"pass"`
}

func encodeRecord(r Record) storedRecord {
	return storedRecord{At: r.At.UnixMilli(), Result: r.Result}
}

func decodeRecord(data []byte) (Record, error) {
	var raw rawRecord
	if err := json.Decode(data, &raw); err != nil {
		return Record{}, errors.Wrap(ErrCorruptRecord, err.Error())
	}

	at, err := decodeTime(raw.At)
	if err != nil {
		return Record{}, errors.Wrapf(ErrCorruptRecord, `invalid "at": %s`, err.Error())
	}

	var result Verdict
	switch {
	case raw.Result != nil:
		switch v := Verdict(*raw.Result); v {
		case VerdictPass, VerdictFail:
			result = v
		default:
			return Record{}, errors.Wrapf(ErrCorruptRecord, `unexpected result "%s"`, *raw.Result)
		}
	case raw.Pass != nil && *raw.Pass:
		result = VerdictPass
	case raw.Pass != nil:
		result = VerdictFail
	default:
		return Record{}, errors.Wrap(ErrCorruptRecord, `missing "result"`)
	}

	return Record{At: at, Result: result}, nil
}

func decodeTime(data json.RawMessage) (time.Time, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return time.Time{}, errors.New("value is missing")
	}

	// ISO-8601 string, or a number in a string
	if data[0] == '"' {
		var str string
		if err := json.Decode(data, &str); err != nil {
			return time.Time{}, err
		}
		if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
		t, err := iso8601.ParseString(str)
		if err != nil {
			return time.Time{}, err
		}
		return t, nil
	}

	// Epoch milliseconds
	var ms float64
	if err := json.Decode(data, &ms); err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return time.Time{}, errors.Errorf(`"%s" is not a valid timestamp`, string(data))
	}
	return time.UnixMilli(int64(ms)), nil
}
