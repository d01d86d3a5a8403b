package block

import (
	"encoding/binary"
	"testing"
)

// TestScenarioS5 matches the spec's worked footer example.
func TestScenarioS5(t *testing.T) {
	f := &Footer{
		TableMagicNumber: LegacyBlockBasedTableMagicNumber,
		IndexHandle:      Handle{Offset: 10, Size: 20},
	}
	encoded := f.EncodeTo()

	if len(encoded) != 48 {
		t.Fatalf("EncodeTo() length = %d, want 48", len(encoded))
	}

	wantMagic := []byte{0x57, 0xfb, 0x80, 0x8b, 0x24, 0x75, 0x47, 0xdb}
	gotMagic := encoded[len(encoded)-8:]
	for i := range wantMagic {
		if gotMagic[i] != wantMagic[i] {
			t.Fatalf("magic bytes = %x, want %x", gotMagic, wantMagic)
		}
	}

	decoded, err := DecodeFooter(encoded)
	if err != nil {
		t.Fatalf("DecodeFooter: %v", err)
	}
	if decoded.IndexHandle != f.IndexHandle {
		t.Errorf("decoded handle = %v, want %v", decoded.IndexHandle, f.IndexHandle)
	}
}

// TestScenarioS6: a file whose last 8 bytes are not the magic fails to decode.
func TestScenarioS6(t *testing.T) {
	f := &Footer{
		TableMagicNumber: LegacyBlockBasedTableMagicNumber,
		IndexHandle:      Handle{Offset: 1, Size: 2},
	}
	encoded := f.EncodeTo()

	// Flip the magic number.
	binary.LittleEndian.PutUint64(encoded[len(encoded)-8:], 0)

	if _, err := DecodeFooter(encoded); err == nil {
		t.Error("DecodeFooter with corrupted magic should fail")
	}
}

func TestDecodeFooterTooShort(t *testing.T) {
	if _, err := DecodeFooter(make([]byte, EncodedLength-1)); err == nil {
		t.Error("DecodeFooter on a too-short buffer should fail")
	}
}

func TestFooterBitFlipInMagicFails(t *testing.T) {
	f := &Footer{TableMagicNumber: LegacyBlockBasedTableMagicNumber, IndexHandle: Handle{Offset: 5, Size: 5}}
	base := f.EncodeTo()

	for i := len(base) - 8; i < len(base); i++ {
		for bit := range 8 {
			corrupt := append([]byte(nil), base...)
			corrupt[i] ^= 1 << bit
			if _, err := DecodeFooter(corrupt); err == nil {
				t.Errorf("single bit flip at byte %d bit %d did not trigger corruption", i, bit)
			}
		}
	}
}
