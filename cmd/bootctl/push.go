package main

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/gpappasv/stm32-bootloader/internal/update"
)

// pushImage drives FWUG_START/FWUG_DATA*/FWUG_STATUS against c for the
// file at path: the image on disk is the full backup-slot image (payload
// followed by the signed trailer header), chunked at
// update.PayloadChunkSize and padded with 0xFF on the final chunk exactly
// the way an erased-but-unwritten flash region reads.
func pushImage(c *conn, path string) (pushRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pushRecord{}, fmt.Errorf("read %s: %w", path, err)
	}

	hash := sha256.Sum256(data)
	fmt.Printf("image: %s (%s)\n", path, humanize.Bytes(uint64(len(data))))
	fmt.Printf("sha256: %x\n", hash)

	startFrame, err := c.roundTrip(update.FWUGStart, nil)
	if err != nil {
		return pushRecord{}, fmt.Errorf("FWUG_START: %w", err)
	}
	if err := checkStatusOK(startFrame); err != nil {
		return pushRecord{}, fmt.Errorf("FWUG_START rejected: %w", err)
	}

	chunks := chunkPadded(data, update.PayloadChunkSize)
	for i, chunk := range chunks {
		body := fwugDataBody(uint32(i), chunk)
		resp, err := c.roundTrip(update.FWUGData, body)
		if err != nil {
			return pushRecord{}, fmt.Errorf("FWUG_DATA packet %d: %w", i, err)
		}
		if err := checkStatusOK(resp); err != nil {
			return pushRecord{}, fmt.Errorf("FWUG_DATA packet %d rejected: %w", i, err)
		}
		fmt.Printf("\r[%3d%%] packet %d/%d", (i+1)*100/len(chunks), i+1, len(chunks))
	}
	fmt.Println()

	const trailerSize = 4 + 4 + 32 + 64 // FWVersion + CRC32 + SHA256 + Signature, slot.Header's packed layout
	version := binary.LittleEndian.Uint32(data[len(data)-trailerSize:])
	rec := pushRecord{ImagePath: path, Version: version, SHA256Hex: fmt.Sprintf("%x", hash), Bytes: len(data)}
	return rec, nil
}

// chunkPadded splits data into size-byte chunks, padding the final chunk
// with 0xFF so every FWUG_DATA body is exactly size bytes, matching what
// an erased flash sector reads back as before being programmed.
func chunkPadded(data []byte, size int) [][]byte {
	var chunks [][]byte
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			chunk := make([]byte, size)
			for i := range chunk {
				chunk[i] = 0xFF
			}
			copy(chunk, data[off:])
			chunks = append(chunks, chunk)
			break
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}

// checkStatusOK decodes a FWUG_STATUS frame's result byte.
func checkStatusOK(f update.Frame) error {
	if f.Type != update.FWUGStatus || len(f.Body) < 1 {
		return fmt.Errorf("unexpected response frame type %d", f.Type)
	}
	if f.Body[0] != update.ResultOK {
		return fmt.Errorf("device returned result 0x%02x", f.Body[0])
	}
	return nil
}
