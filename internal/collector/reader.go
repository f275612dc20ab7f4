package collector

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is where the kernel exposes power_supply devices.
const DefaultSysfsRoot = "/sys"

const (
	attrStatus     = "status"
	attrEnergyFull = "energy_full"
	attrEnergyNow  = "energy_now"
)

// EnergyKind selects which energy attribute of a battery to read.
type EnergyKind int

const (
	FullCapacity EnergyKind = iota
	CurrentEnergy
)

func (k EnergyKind) attribute() string {
	if k == CurrentEnergy {
		return attrEnergyNow
	}
	return attrEnergyFull
}

// EnergyReading holds one battery's rated and stored energy in the unit the
// kernel reports (usually µWh).
type EnergyReading struct {
	FullCapacity  uint64
	CurrentEnergy uint64
}

// TextReader reads a whole text file.
type TextReader interface {
	ReadText(path string) (string, error)
}

// OSReader reads files from the local filesystem.
type OSReader struct{}

func (OSReader) ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Reader reads battery attributes from <root>/class/power_supply/<id>/.
type Reader struct {
	root  string
	files TextReader
}

// NewReader creates a Reader. An empty root means DefaultSysfsRoot and a nil
// files means OSReader.
func NewReader(root string, files TextReader) *Reader {
	if root == "" {
		root = DefaultSysfsRoot
	}
	if files == nil {
		files = OSReader{}
	}
	return &Reader{root: root, files: files}
}

// Path returns the sysfs path of attr for battery id.
func (r *Reader) Path(id, attr string) string {
	return filepath.Join(r.root, "class", "power_supply", id, attr)
}

// ReadStatus reads and classifies the battery's status attribute. Unrecognised
// text is Unknown; only a failed read is an error.
func (r *Reader) ReadStatus(id string) (Status, error) {
	text, err := r.read(id, attrStatus)
	if err != nil {
		return Unknown, err
	}
	return ParseStatus(text), nil
}

// ReadEnergy reads one energy attribute as a non-negative integer.
func (r *Reader) ReadEnergy(id string, kind EnergyKind) (uint64, error) {
	attr := kind.attribute()
	text, err := r.read(id, attr)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, &ReadError{Kind: KindParse, Battery: id, Attribute: attr, Path: r.Path(id, attr), Err: err}
	}
	return v, nil
}

// ReadReading reads energy_full then energy_now for one battery.
func (r *Reader) ReadReading(id string) (EnergyReading, error) {
	full, err := r.ReadEnergy(id, FullCapacity)
	if err != nil {
		return EnergyReading{}, err
	}
	now, err := r.ReadEnergy(id, CurrentEnergy)
	if err != nil {
		return EnergyReading{}, err
	}
	return EnergyReading{FullCapacity: full, CurrentEnergy: now}, nil
}

// read returns the trimmed contents of one attribute file.
func (r *Reader) read(id, attr string) (string, error) {
	path := r.Path(id, attr)
	text, err := r.files.ReadText(path)
	if err != nil {
		return "", &ReadError{Kind: KindIO, Battery: id, Attribute: attr, Path: path, Err: err}
	}
	return strings.TrimSpace(text), nil
}
