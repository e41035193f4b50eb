package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// CurrentSchemaVersion is the snapshot format written by [Encode].
const CurrentSchemaVersion = 1

const maxFieldLen = 1<<16 - 1

// Encode serialises a session snapshot for the cache:
//
//	version(1) | id | userID | email | name | userType | createdAt(8) | expiresAt(8)
//
// Strings are uint16 length-prefixed, times are big-endian unix milliseconds.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(32 + len(s.ID) + len(s.UserID) + len(s.UserEmail) + len(s.UserName) + len(s.UserType))
	buf.WriteByte(CurrentSchemaVersion)

	for _, field := range []string{s.ID, s.UserID, s.UserEmail, s.UserName, s.UserType} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a snapshot written by [Encode]. Unknown versions and truncated input
// are errors; trailing bytes are rejected.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{}
	for _, field := range []*string{&s.ID, &s.UserID, &s.UserEmail, &s.UserName, &s.UserType} {
		if *field, err = readString(reader); err != nil {
			return nil, err
		}
	}

	var createdAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session snapshot")
	}

	s.CreatedAt = time.UnixMilli(createdAt)
	s.ExpiresAt = time.UnixMilli(expiresAt)
	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > maxFieldLen {
		return errors.New("session field too long")
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(v)))
	buf.Write(n[:])
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
