package wordpress

import (
	"bytes"
	goimage "image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	defaultMaxImageWidth = 1200
	jpegQuality          = 85
	maxImageBytes        = 20 << 20 // 20MB
)

type image struct {
	data        []byte
	filename    string
	contentType string
}

// normalizeImage re-encodes the featured image as JPEG, scaled down to
// maxWidth. Anything that does not decode is passed through untouched.
func normalizeImage(raw []byte, maxWidth int) image {
	img, format, err := goimage.Decode(bytes.NewReader(raw))
	if err != nil {
		log.Printf("wordpress: uploading image as fetched: %v", err)
		return passthrough(raw)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if format == "jpeg" && w <= maxWidth {
		return image{data: raw, filename: "featured-image.jpg", contentType: "image/jpeg"}
	}

	outW, outH := w, h
	if w > maxWidth {
		outW = maxWidth
		outH = h * maxWidth / w
		if outH < 1 {
			outH = 1
		}
	}

	// JPEG has no alpha, so transparent pixels are flattened onto white.
	dst := goimage.NewRGBA(goimage.Rect(0, 0, outW, outH))
	draw.Draw(dst, dst.Bounds(), goimage.White, goimage.Point{}, draw.Src)
	if outW != w {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	} else {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		log.Printf("wordpress: uploading image as fetched: encode jpeg: %v", err)
		return passthrough(raw)
	}
	return image{data: buf.Bytes(), filename: "featured-image.jpg", contentType: "image/jpeg"}
}

func passthrough(raw []byte) image {
	contentType := http.DetectContentType(raw)
	name := "featured-image"
	switch contentType {
	case "image/jpeg":
		name += ".jpg"
	case "image/png":
		name += ".png"
	case "image/gif":
		name += ".gif"
	case "image/webp":
		name += ".webp"
	default:
		name += ".jpg"
	}
	return image{data: raw, filename: name, contentType: contentType}
}
