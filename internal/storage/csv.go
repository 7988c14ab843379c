package storage

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"placement/internal/placement"
	"placement/internal/ring"
)

const (
	csvDelimiter     = ","
	csvMaxLineLength = 1024 * 1024 // 1 MB
)

// csvCodec encodes one record per line: "<token>,<node-1>,...,<node-N>".
// There is no header and no escaping.
type csvCodec struct{}

func (csvCodec) extension() string {
	return ".csv"
}

func (csvCodec) decode(r io.Reader, logger *zap.Logger, cache *placement.Cache) error {
	br := bufio.NewReaderSize(r, 4096)

	for line := 1; ; line++ {
		raw, tooLong, err := readLine(br, csvMaxLineLength)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if tooLong {
			logger.Warn("skipping malformed record", zap.Int("line", line), zap.Error(errLineTooLong))
		} else {
			decodeRow(raw, line, logger, cache)
		}
		if err != nil {
			return nil
		}
	}
}

var errLineTooLong = errors.New("line too long")

// readLine returns the next line without its terminator. A line longer than
// limit is consumed up to its end and reported as tooLong.
func readLine(br *bufio.Reader, limit int) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		var chunk []byte
		chunk, err = br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > limit+1 {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return strings.TrimRight(string(buf), "\r\n"), tooLong, err
	}
}

func decodeRow(row string, line int, logger *zap.Logger, cache *placement.Cache) {
	if strings.TrimSpace(row) == "" {
		return
	}

	fields := strings.Split(row, csvDelimiter)
	token, err := ring.ParseToken(strings.TrimSpace(fields[0]))
	if err != nil {
		logger.Warn("skipping malformed record", zap.Int("line", line), zap.Error(err))
		return
	}

	record := make(placement.Record, 0, len(fields)-1)
	for _, field := range fields[1:] {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		node, err := ring.ParseNodeID(field)
		if err != nil {
			logger.Warn("dropping unresolvable node", zap.Int("line", line), zap.Stringer("token", token), zap.Error(err))
			continue
		}
		record = append(record, node)
	}
	cache.Put(token, record)
}

func (csvCodec) encode(w io.Writer, entries []placement.Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		fields := make([]string, 0, len(e.Record)+1)
		fields = append(fields, e.Token.String())
		for _, node := range e.Record {
			fields = append(fields, node.String())
		}
		if _, err := bw.WriteString(strings.Join(fields, csvDelimiter) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
