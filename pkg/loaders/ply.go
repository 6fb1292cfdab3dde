package loaders

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/df07/go-drtm/pkg/core"
)

// PLYHeader represents the parsed header information from a PLY file
type PLYHeader struct {
	Format      string // "binary_little_endian", "binary_big_endian", or "ascii"
	Version     string // Usually "1.0"
	VertexCount int
	FaceCount   int
	VertexProps []PLYProperty
	FaceProps   []PLYProperty
}

// PLYProperty represents a property definition in the PLY header
type PLYProperty struct {
	Name     string
	Type     string
	IsList   bool
	ListType string // For list properties, the type of the count
	DataType string // For list properties, the type of the data
}

// PLYData contains the geometry read from a PLY file
type PLYData struct {
	Vertices []core.Vec3 // Vertex positions (x, y, z)
	Faces    []int       // Triangle indices (3 per triangle), polygons are fan-triangulated
}

// LoadPLY loads a PLY file and returns its vertices and triangulated faces
func LoadPLY(filename string) (*PLYData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open PLY file: %w", err)
	}
	defer file.Close()

	return ReadPLY(bufio.NewReader(file))
}

// ReadPLY parses PLY content from a reader
func ReadPLY(reader *bufio.Reader) (*PLYData, error) {
	header, err := parsePLYHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PLY header: %w", err)
	}

	var elements plyValueReader
	switch header.Format {
	case "ascii":
		elements = &asciiValueReader{reader: reader}
	case "binary_little_endian":
		elements = &binaryValueReader{reader: reader, order: binary.LittleEndian}
	case "binary_big_endian":
		elements = &binaryValueReader{reader: reader, order: binary.BigEndian}
	default:
		return nil, fmt.Errorf("unsupported PLY format: %s", header.Format)
	}

	data, err := readElements(elements, header)
	if err != nil {
		return nil, fmt.Errorf("failed to read PLY data: %w", err)
	}
	return data, nil
}

// parsePLYHeader parses the PLY header up to and including end_header
func parsePLYHeader(reader *bufio.Reader) (*PLYHeader, error) {
	header := &PLYHeader{}
	var currentElement string

	magic, err := reader.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("missing ply magic")
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("error reading header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "end_header" {
			break
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "format":
			if len(parts) >= 3 {
				header.Format = parts[1]
				header.Version = parts[2]
			}
		case "comment", "obj_info":
			// Ignore comments
		case "element":
			if len(parts) < 3 {
				return nil, fmt.Errorf("invalid element line: %q", line)
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("invalid element count: %s", parts[2])
			}
			currentElement = parts[1]
			switch currentElement {
			case "vertex":
				header.VertexCount = count
			case "face":
				header.FaceCount = count
			default:
				return nil, fmt.Errorf("unsupported element %q", currentElement)
			}
		case "property":
			prop, err := parsePLYProperty(parts[1:])
			if err != nil {
				return nil, fmt.Errorf("failed to parse property: %w", err)
			}
			switch currentElement {
			case "vertex":
				header.VertexProps = append(header.VertexProps, prop)
			case "face":
				header.FaceProps = append(header.FaceProps, prop)
			}
		}
	}

	return header, nil
}

// parsePLYProperty parses a property line from the PLY header
func parsePLYProperty(parts []string) (PLYProperty, error) {
	if len(parts) < 2 {
		return PLYProperty{}, fmt.Errorf("invalid property definition")
	}

	if parts[0] == "list" {
		if len(parts) < 4 {
			return PLYProperty{}, fmt.Errorf("invalid list property definition")
		}
		return PLYProperty{IsList: true, ListType: parts[1], DataType: parts[2], Name: parts[3]}, nil
	}
	if getTypeSize(parts[0]) == 0 {
		return PLYProperty{}, fmt.Errorf("unknown property type %q", parts[0])
	}
	return PLYProperty{Type: parts[0], Name: parts[1]}, nil
}

// plyValueReader yields successive scalar values of the body regardless of encoding
type plyValueReader interface {
	next(dataType string) (float64, error)
}

type asciiValueReader struct {
	reader *bufio.Reader
}

func (a *asciiValueReader) next(dataType string) (float64, error) {
	var token strings.Builder
	for {
		b, err := a.reader.ReadByte()
		if err != nil {
			if err == io.EOF && token.Len() > 0 {
				break
			}
			return 0, err
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			if token.Len() == 0 {
				continue
			}
			break
		}
		token.WriteByte(b)
	}
	return strconv.ParseFloat(token.String(), 64)
}

type binaryValueReader struct {
	reader *bufio.Reader
	order  binary.ByteOrder
	buf    [8]byte
}

func (r *binaryValueReader) next(dataType string) (float64, error) {
	size := getTypeSize(dataType)
	if size == 0 {
		return 0, fmt.Errorf("unsupported data type: %s", dataType)
	}
	b := r.buf[:size]
	if _, err := io.ReadFull(r.reader, b); err != nil {
		return 0, err
	}

	switch dataType {
	case "char", "int8":
		return float64(int8(b[0])), nil
	case "uchar", "uint8":
		return float64(b[0]), nil
	case "short", "int16":
		return float64(int16(r.order.Uint16(b))), nil
	case "ushort", "uint16":
		return float64(r.order.Uint16(b)), nil
	case "int", "int32":
		return float64(int32(r.order.Uint32(b))), nil
	case "uint", "uint32":
		return float64(r.order.Uint32(b)), nil
	case "float", "float32":
		return float64(math.Float32frombits(r.order.Uint32(b))), nil
	default: // "double", "float64"
		return math.Float64frombits(r.order.Uint64(b)), nil
	}
}

// readElements reads the vertex and face elements described by the header
func readElements(values plyValueReader, header *PLYHeader) (*PLYData, error) {
	data := &PLYData{
		Vertices: make([]core.Vec3, 0, header.VertexCount),
		Faces:    make([]int, 0, header.FaceCount*3),
	}

	for i := 0; i < header.VertexCount; i++ {
		var vertex core.Vec3
		for _, prop := range header.VertexProps {
			if prop.IsList {
				if err := skipList(values, prop); err != nil {
					return nil, fmt.Errorf("vertex %d: %w", i, err)
				}
				continue
			}
			v, err := values.next(prop.Type)
			if err != nil {
				return nil, fmt.Errorf("failed to read vertex %d: %w", i, err)
			}
			switch prop.Name {
			case "x":
				vertex.X = v
			case "y":
				vertex.Y = v
			case "z":
				vertex.Z = v
			}
		}
		data.Vertices = append(data.Vertices, vertex)
	}

	for i := 0; i < header.FaceCount; i++ {
		for _, prop := range header.FaceProps {
			if !prop.IsList {
				if _, err := values.next(prop.Type); err != nil {
					return nil, fmt.Errorf("failed to read face %d: %w", i, err)
				}
				continue
			}
			if prop.Name != "vertex_indices" && prop.Name != "vertex_index" {
				if err := skipList(values, prop); err != nil {
					return nil, fmt.Errorf("face %d: %w", i, err)
				}
				continue
			}

			count, err := values.next(prop.ListType)
			if err != nil {
				return nil, fmt.Errorf("failed to read face vertex count at face %d: %w", i, err)
			}
			if count < 3 {
				return nil, fmt.Errorf("face %d has %d vertices", i, int(count))
			}
			indices := make([]int, int(count))
			for k := range indices {
				idx, err := values.next(prop.DataType)
				if err != nil {
					return nil, fmt.Errorf("failed to read face indices at face %d: %w", i, err)
				}
				indices[k] = int(idx)
			}
			// Fan triangulation
			for k := 1; k+1 < len(indices); k++ {
				data.Faces = append(data.Faces, indices[0], indices[k], indices[k+1])
			}
		}
	}

	return data, nil
}

func skipList(values plyValueReader, prop PLYProperty) error {
	count, err := values.next(prop.ListType)
	if err != nil {
		return fmt.Errorf("failed to read list count of %s: %w", prop.Name, err)
	}
	for k := 0; k < int(count); k++ {
		if _, err := values.next(prop.DataType); err != nil {
			return fmt.Errorf("failed to skip %s: %w", prop.Name, err)
		}
	}
	return nil
}

// getTypeSize returns the size in bytes of a PLY scalar type, 0 if unknown
func getTypeSize(dataType string) int {
	switch dataType {
	case "char", "uchar", "int8", "uint8":
		return 1
	case "short", "ushort", "int16", "uint16":
		return 2
	case "int", "uint", "float", "int32", "uint32", "float32":
		return 4
	case "double", "float64":
		return 8
	default:
		return 0
	}
}
