package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// PCDType is the encoding of the body of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// NewFromFile returns a pointcloud read in from the given file.
func NewFromFile(fn string, logger golog.Logger) (*PointCloud, error) {
	switch filepath.Ext(fn) {
	case ".pcd":
		return NewFromPCDFile(fn, logger)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// NewFromPCDFile returns a pointcloud read in from a pcd file.
func NewFromPCDFile(fn string, logger golog.Logger) (*PointCloud, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening pcd file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	cloud, err := ReadPCD(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading pcd file %q", fn)
	}
	logger.Debugf("loaded %d model points from %q", cloud.Size(), fn)
	return cloud, nil
}

const pcdCommentChar = "#"

var pcdHeaderFields = []string{
	"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT",
	"WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA",
}

type pcdHeader struct {
	size   []uint64
	width  uint64
	height uint64
	points uint64
	data   PCDType
}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Split(value, " ")
	if field != name {
		return fmt.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return fmt.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		// the model is geometry only
		if value != "x y z" {
			return fmt.Errorf("unsupported pcd fields %s", value)
		}
	case "SIZE":
		if len(tokens) != 3 {
			return fmt.Errorf("unexpected number of fields in SIZE line")
		}
		header.size = make([]uint64, len(tokens))
		for i, token := range tokens {
			header.size[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid SIZE field %s", token)
			}
		}
	case "TYPE":
		if len(tokens) != 3 {
			return fmt.Errorf("unexpected number of fields in TYPE line")
		}
		for _, token := range tokens {
			if token != "F" {
				return fmt.Errorf("unsupported pcd field type %s", token)
			}
		}
	case "COUNT":
		if len(tokens) != 3 {
			return fmt.Errorf("unexpected number of fields in COUNT line")
		}
	case "WIDTH":
		header.width, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid WIDTH field %s: %s", value, err)
		}
	case "HEIGHT":
		header.height, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid HEIGHT field %s: %s", value, err)
		}
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return fmt.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
	case "POINTS":
		var points uint64
		points, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid POINTS field %s: %s", value, err)
		}
		if points != header.width*header.height {
			return fmt.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", points, header.width*header.height)
		}
		header.points = points
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		default:
			return fmt.Errorf("unsupported pcd data type %s", value)
		}
	}

	return nil
}

// ReadPCD reads a 3-field (x y z) PCD v.7 stream into a PointCloud, keeping
// file order so that point indices match the order on disk.
func ReadPCD(inRaw io.Reader) (*PointCloud, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	var line string
	var err error
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err = in.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("error reading header line %d: %s", headerLineCount, err)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		err := parsePCDHeaderLine(line, headerLineCount, &header)
		if err != nil {
			return nil, err
		}
		headerLineCount++
	}
	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	default:
		return nil, fmt.Errorf("unsupported pcd data type %v", header.data)
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (*PointCloud, error) {
	cloud := NewWithPrealloc(int(header.points))
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		tokens := strings.Split(line, " ")
		if len(tokens) != 3 {
			return nil, fmt.Errorf("unexpected number of fields in point %d", i)
		}
		point := make([]float64, len(tokens))
		for j, token := range tokens {
			point[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid point %d field %s: %s", i, token, err)
			}
		}
		cloud.Append(r3.Vector{X: point[0], Y: point[1], Z: point[2]})
	}
	return cloud, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (*PointCloud, error) {
	cloud := NewWithPrealloc(int(header.points))
	for i := 0; i < int(header.points); i++ {
		pointBuf := make([]float64, 3)
		for j := 0; j < 3; j++ {
			buf := make([]byte, header.size[j])
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, err
			}
			pointBuf[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
		}
		cloud.Append(r3.Vector{X: pointBuf[0], Y: pointBuf[1], Z: pointBuf[2]})
	}
	return cloud, nil
}

// WritePCDFile writes the point cloud out to a pcd file.
func WritePCDFile(cloud *PointCloud, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WritePCD(cloud, f, outputType)
}

// WritePCD writes the point cloud to the given writer in pcd format.
func WritePCD(cloud *PointCloud, out io.Writer, outputType PCDType) error {
	var dataType string
	switch outputType {
	case PCDAscii:
		dataType = "ascii"
	case PCDBinary:
		dataType = "binary"
	default:
		return fmt.Errorf("unsupported pcd data type %v", outputType)
	}
	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n", cloud.Size(), cloud.Size(), dataType)
	if err != nil {
		return err
	}
	buf := make([]byte, 4)
	cloud.Iterate(func(_ int, p r3.Vector) bool {
		switch outputType {
		case PCDAscii:
			_, err = fmt.Fprintf(out, "%f %f %f\n", p.X, p.Y, p.Z)
		case PCDBinary:
			for _, v := range []float64{p.X, p.Y, p.Z} {
				binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
				if _, err = out.Write(buf); err != nil {
					return false
				}
			}
		}
		return err == nil
	})
	return err
}
