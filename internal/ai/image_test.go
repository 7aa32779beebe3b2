package ai

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// makeTestJPEG encodes a solid-color JPEG of the given size.
func makeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("could not encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("could not decode result: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestResizeFrameDownscalesLandscape(t *testing.T) {
	frame := makeTestJPEG(t, 1280, 720)

	resized, err := ResizeFrame(frame, 800)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	w, h := decodeSize(t, resized)
	if w != 800 {
		t.Errorf("expected width 800, got %d", w)
	}
	if h != 450 {
		t.Errorf("expected height 450, got %d", h)
	}
}

func TestResizeFrameDownscalesPortrait(t *testing.T) {
	frame := makeTestJPEG(t, 720, 1280)

	resized, err := ResizeFrame(frame, 800)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	w, h := decodeSize(t, resized)
	if h != 800 {
		t.Errorf("expected height 800, got %d", h)
	}
	if w != 450 {
		t.Errorf("expected width 450, got %d", w)
	}
}

func TestResizeFrameKeepsSmallImages(t *testing.T) {
	frame := makeTestJPEG(t, 320, 240)

	resized, err := ResizeFrame(frame, 800)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	w, h := decodeSize(t, resized)
	if w != 320 || h != 240 {
		t.Errorf("expected 320x240 unchanged, got %dx%d", w, h)
	}
}

func TestResizeFrameRejectsGarbage(t *testing.T) {
	if _, err := ResizeFrame([]byte("not an image"), 800); err == nil {
		t.Error("expected error for undecodable data")
	}
}

func TestDecodeFrame(t *testing.T) {
	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	encoded := base64.StdEncoding.EncodeToString(raw)

	t.Run("PlainBase64", func(t *testing.T) {
		got, err := DecodeFrame(encoded)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !bytes.Equal(got, raw) {
			t.Errorf("expected %x, got %x", raw, got)
		}
	})

	t.Run("DataURL", func(t *testing.T) {
		got, err := DecodeFrame("data:image/jpeg;base64," + encoded)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !bytes.Equal(got, raw) {
			t.Errorf("expected %x, got %x", raw, got)
		}
	})

	t.Run("InvalidBase64", func(t *testing.T) {
		if _, err := DecodeFrame("!!! not base64 !!!"); err == nil {
			t.Error("expected error for invalid base64")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if _, err := DecodeFrame(""); err == nil {
			t.Error("expected error for empty input")
		}
	})
}
