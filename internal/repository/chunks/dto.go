package chunks

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// buildHashFields converts a chunk into a flat map[string]string for HSET.
func buildHashFields(ch *domain.Chunk) map[string]string {
	return map[string]string{
		"document_id": ch.DocumentID,
		"seq":         strconv.Itoa(ch.Seq),
		"text":        ch.Text,
		"char_count":  strconv.Itoa(ch.CharCount),
		"created_at":  strconv.FormatInt(ch.CreatedAt.Unix(), 10),
		"vector":      vectorToBytes(ch.Vector),
	}
}

// parseHashFields converts a flat hash map back into a chunk.
func parseHashFields(m map[string]string) domain.Chunk {
	ch := domain.Chunk{
		DocumentID: m["document_id"],
		Text:       m["text"],
	}
	if seq, err := strconv.Atoi(m["seq"]); err == nil {
		ch.Seq = seq
	}
	if n, err := strconv.Atoi(m["char_count"]); err == nil {
		ch.CharCount = n
	}
	if ts, err := strconv.ParseInt(m["created_at"], 10, 64); err == nil {
		ch.CreatedAt = time.Unix(ts, 0).UTC()
	}
	if raw, ok := m["vector"]; ok {
		ch.Vector = bytesToVector(raw)
	}
	return ch
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
