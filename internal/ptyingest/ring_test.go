package ptyingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_UnderSize(t *testing.T) {
	r := NewRing(16)
	r.Write([]byte("hello"))
	assert.Equal(t, []byte("hello"), r.Contents())
}

func TestRing_ExactSize(t *testing.T) {
	r := NewRing(5)
	r.Write([]byte("abcde"))
	assert.Equal(t, []byte("abcde"), r.Contents())
}

func TestRing_Wrap(t *testing.T) {
	r := NewRing(5)
	r.Write([]byte("abcde"))
	r.Write([]byte("fg"))
	assert.Equal(t, []byte("cdefg"), r.Contents())
}

func TestRing_MultipleWraps(t *testing.T) {
	r := NewRing(4)
	r.Write([]byte("abcdefghijklmnop"))
	assert.Equal(t, []byte("mnop"), r.Contents())
}

func TestRing_Empty(t *testing.T) {
	r := NewRing(16)
	assert.Empty(t, r.Contents())
}

func TestIncompleteUTF8Tail_ASCII(t *testing.T) {
	assert.Equal(t, 0, incompleteUTF8Tail([]byte("hello")))
}

func TestIncompleteUTF8Tail_Incomplete2Byte(t *testing.T) {
	assert.Equal(t, 1, incompleteUTF8Tail([]byte("caf\xc3")))
}

func TestIncompleteUTF8Tail_Incomplete3Byte_2of3(t *testing.T) {
	assert.Equal(t, 2, incompleteUTF8Tail([]byte("ab\xe2\x94")))
}

func TestSkipLeadingContinuationBytes(t *testing.T) {
	data := []byte{0x94, 0x80, 'h', 'e', 'l', 'l', 'o'}
	assert.Equal(t, []byte("hello"), skipLeadingContinuationBytes(data))
}

// Since/Cursor exercise the multi-consumer semantics the ring adds on top
// of the teacher's single-buffer original.

func TestRing_SinceFromStart(t *testing.T) {
	r := NewRing(32)
	r.Write([]byte("hello"))
	out, cursor := r.Since(0)
	assert.Equal(t, []byte("hello"), out)
	assert.EqualValues(t, 5, cursor)
}

func TestRing_SinceAdvancesIncrementally(t *testing.T) {
	r := NewRing(32)
	r.Write([]byte("hello"))
	_, cursor := r.Since(0)
	r.Write([]byte(" world"))
	out, cursor2 := r.Since(cursor)
	assert.Equal(t, []byte(" world"), out)
	assert.EqualValues(t, 11, cursor2)
}

func TestRing_SinceCaughtUpReturnsNothing(t *testing.T) {
	r := NewRing(32)
	r.Write([]byte("hello"))
	cursor := r.Cursor()
	out, cursor2 := r.Since(cursor)
	assert.Empty(t, out)
	assert.Equal(t, cursor, cursor2)
}

func TestRing_SinceSkipsDiscardedData(t *testing.T) {
	r := NewRing(4)
	r.Write([]byte("ab")) // cursor 0 -> total 2
	out, cursor := r.Since(0)
	assert.Equal(t, []byte("ab"), out)
	r.Write([]byte("cdefgh")) // overwrites everything, total now 8
	// cursor (2) is far behind; ring only retains the last 4 bytes.
	out2, cursor2 := r.Since(cursor)
	assert.Equal(t, []byte("efgh"), out2)
	assert.EqualValues(t, 8, cursor2)
}

func TestRing_WrapSkipsOrphanedUTF8(t *testing.T) {
	r := NewRing(8)
	r.Write([]byte("─hello")) // 3-byte rune + 5 bytes fills the ring exactly
	r.Write([]byte("X"))      // overwrites the rune's lead byte, orphaning its continuation bytes
	assert.Equal(t, "helloX", string(r.Contents()))
}
