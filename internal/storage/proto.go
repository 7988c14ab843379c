package storage

import (
	"errors"
	"io"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"

	"placement/internal/placement"
	"placement/internal/ring"
)

// Record message fields.
const (
	fieldToken protowire.Number = 1 // sint64
	fieldNode  protowire.Number = 2 // repeated string
)

var errTruncated = errors.New("truncated record stream")

// protoCodec encodes each record as a length-delimited protobuf message.
type protoCodec struct{}

func (protoCodec) extension() string {
	return ".pb"
}

func (protoCodec) decode(r io.Reader, logger *zap.Logger, cache *placement.Cache) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	for index := 0; len(buf) > 0; index++ {
		msg, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			// Framing is lost, nothing after this point can be trusted.
			logger.Warn("skipping truncated records", zap.Int("record", index), zap.Error(protowire.ParseError(n)))
			return errTruncated
		}
		buf = buf[n:]

		token, record, err := decodeRecord(msg, logger, index)
		if err != nil {
			logger.Warn("skipping malformed record", zap.Int("record", index), zap.Error(err))
			continue
		}
		cache.Put(token, record)
	}
	return nil
}

func decodeRecord(msg []byte, logger *zap.Logger, index int) (ring.Token, placement.Record, error) {
	var (
		token    ring.Token
		hasToken bool
		record   = placement.Record{}
	)

	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return 0, nil, protowire.ParseError(n)
		}
		msg = msg[n:]

		switch {
		case num == fieldToken && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(msg)
			if m < 0 {
				return 0, nil, protowire.ParseError(m)
			}
			token, hasToken = ring.Token(protowire.DecodeZigZag(v)), true
			n = m
		case num == fieldNode && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(msg)
			if m < 0 {
				return 0, nil, protowire.ParseError(m)
			}
			if node, err := ring.ParseNodeID(v); err != nil {
				logger.Warn("dropping unresolvable node", zap.Int("record", index), zap.Error(err))
			} else {
				record = append(record, node)
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return 0, nil, protowire.ParseError(n)
			}
		}
		msg = msg[n:]
	}

	if !hasToken {
		return 0, nil, errors.New("record has no token")
	}
	return token, record, nil
}

func (protoCodec) encode(w io.Writer, entries []placement.Entry) error {
	var out []byte
	for _, e := range entries {
		var msg []byte
		msg = protowire.AppendTag(msg, fieldToken, protowire.VarintType)
		msg = protowire.AppendVarint(msg, protowire.EncodeZigZag(int64(e.Token)))
		for _, node := range e.Record {
			msg = protowire.AppendTag(msg, fieldNode, protowire.BytesType)
			msg = protowire.AppendString(msg, node.String())
		}
		out = protowire.AppendBytes(out, msg)
	}
	_, err := w.Write(out)
	return err
}
