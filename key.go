package identity

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// KeyKind enumerates the primary key types a UserStore can be built for.
type KeyKind int

const (
	// KeyString is a string key, stored as is.
	KeyString KeyKind = iota + 1
	// KeyUUID is a uuid.UUID key, stored in its canonical hyphenated form.
	KeyUUID
	// KeyInt32 is an int32 key, stored in decimal.
	KeyInt32
	// KeyInt64 is an int64 key, stored in decimal.
	KeyInt64
)

func (k KeyKind) String() string {
	switch k {
	case KeyString:
		return "string"
	case KeyUUID:
		return "uuid"
	case KeyInt32:
		return "int32"
	case KeyInt64:
		return "int64"
	}
	return "KeyKind(" + strconv.Itoa(int(k)) + ")"
}

// KeyCodec translates between a typed key and the string identifier used by
// the public store API and by stored documents.
type KeyCodec[K comparable] interface {
	// Kind returns the key kind handled by the codec.
	Kind() KeyKind
	// Decode parses id. It reports false if id is not a valid key of this
	// kind, which callers treat as "no such entity".
	Decode(id string) (K, bool)
	// Encode returns the canonical string form of key.
	Encode(key K) string
	// NewKey returns a fresh random key, or false if keys of this kind must
	// be supplied by the caller.
	NewKey() (K, bool)
}

// NewKeyCodec returns the KeyCodec for K, or ErrUnsupportedKeyType.
func NewKeyCodec[K comparable]() (KeyCodec[K], error) {
	var (
		zero  K
		codec any
	)
	switch any(zero).(type) {
	case string:
		codec = stringCodec{}
	case uuid.UUID:
		codec = uuidCodec{}
	case int32:
		codec = int32Codec{}
	case int64:
		codec = int64Codec{}
	default:
		return nil, errors.Wrapf(ErrUnsupportedKeyType, "%T", zero)
	}
	return codec.(KeyCodec[K]), nil
}

type stringCodec struct{}

func (stringCodec) Kind() KeyKind { return KeyString }
func (stringCodec) Decode(id string) (string, bool) { return id, true }
func (stringCodec) Encode(key string) string { return key }
func (stringCodec) NewKey() (string, bool) { return uuid.NewString(), true }

type uuidCodec struct{}

func (uuidCodec) Kind() KeyKind { return KeyUUID }

func (uuidCodec) Decode(id string) (uuid.UUID, bool) {
	key, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, false
	}
	return key, true
}

func (uuidCodec) Encode(key uuid.UUID) string { return key.String() }
func (uuidCodec) NewKey() (uuid.UUID, bool) { return uuid.New(), true }

type int32Codec struct{}

func (int32Codec) Kind() KeyKind { return KeyInt32 }

func (int32Codec) Decode(id string) (int32, bool) {
	key, err := strconv.ParseInt(id, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(key), true
}

func (int32Codec) Encode(key int32) string { return strconv.FormatInt(int64(key), 10) }
func (int32Codec) NewKey() (int32, bool) { return 0, false }

type int64Codec struct{}

func (int64Codec) Kind() KeyKind { return KeyInt64 }

func (int64Codec) Decode(id string) (int64, bool) {
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, false
	}
	return key, true
}

func (int64Codec) Encode(key int64) string { return strconv.FormatInt(key, 10) }
func (int64Codec) NewKey() (int64, bool) { return 0, false }
