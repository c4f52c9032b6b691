package conversion

import (
	"fmt"
	"image"
	"image/color"

	"medisense/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ConvertToGrayscale returns a single channel copy of src. Colour input is
// weighted by the standard BGR luminance coefficients.
func ConvertToGrayscale(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "grayscale conversion"); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if src.Channels() == 1 {
		return src.Clone()
	}

	dst := gocv.NewMat()
	switch src.Channels() {
	case 3:
		gocv.CvtColor(src.GetMat(), &dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src.GetMat(), &dst, gocv.ColorBGRAToGray)
	default:
		dst.Close()
		return nil, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}

	return safe.Adopt(dst, "gray")
}

// MatToImage converts an 8-bit Mat to a Go image. Single channel Mats become
// *image.Gray; BGR and BGRA Mats become *image.RGBA.
func MatToImage(src *safe.Mat) (image.Image, error) {
	if err := safe.ValidateMatForOperation(src, "Mat to image conversion"); err != nil {
		return nil, err
	}

	rows, cols, channels := src.Rows(), src.Cols(), src.Channels()
	data, err := src.Bytes()
	if err != nil {
		return nil, err
	}
	if len(data) != rows*cols*channels {
		return nil, fmt.Errorf("unexpected buffer size %d for %dx%dx%d Mat", len(data), cols, rows, channels)
	}

	switch channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, cols, rows))
		copy(img.Pix, data)
		return img, nil
	case 3, 4:
		img := image.NewRGBA(image.Rect(0, 0, cols, rows))
		for i, j := 0, 0; i < len(data); i, j = i+channels, j+4 {
			img.Pix[j] = data[i+2]
			img.Pix[j+1] = data[i+1]
			img.Pix[j+2] = data[i]
			if channels == 4 {
				img.Pix[j+3] = data[i+3]
			} else {
				img.Pix[j+3] = 255
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
}

// ImageToMat converts a Go image to a Mat. Grayscale images produce a
// CV_8UC1 Mat; everything else produces a BGR CV_8UC3 Mat with alpha dropped.
func ImageToMat(img image.Image) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if err := safe.ValidateDimensions(width, height, "ImageToMat"); err != nil {
		return nil, err
	}

	switch typedImg := img.(type) {
	case *image.Gray:
		return safe.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, grayBytes(typedImg, width, height))
	case *image.RGBA:
		return safe.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, packedToBGR(typedImg.Pix, typedImg.Stride, width, height))
	case *image.NRGBA:
		return safe.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, packedToBGR(typedImg.Pix, typedImg.Stride, width, height))
	default:
		return safe.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, genericToBGR(img, width, height))
	}
}

func grayBytes(img *image.Gray, width, height int) []byte {
	data := make([]byte, width*height)
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width]
		copy(data[y*width:], row)
	}
	return data
}

// packedToBGR reorders RGBA/NRGBA pixel rows into BGR triplets. NRGBA colour
// values are used as stored, matching how OpenCV treats image data without
// an alpha channel.
func packedToBGR(pix []byte, stride, width, height int) []byte {
	data := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		in := pix[y*stride:]
		out := data[y*width*3:]
		for x := 0; x < width; x++ {
			out[x*3] = in[x*4+2]
			out[x*3+1] = in[x*4+1]
			out[x*3+2] = in[x*4]
		}
	}
	return data
}

func genericToBGR(img image.Image, width, height int) []byte {
	bounds := img.Bounds()
	data := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.NRGBA)
			i := (y*width + x) * 3
			data[i] = c.B
			data[i+1] = c.G
			data[i+2] = c.R
		}
	}
	return data
}
