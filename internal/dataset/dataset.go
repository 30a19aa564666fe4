// Package dataset reads the order list and the travel time matrix from their
// semicolon separated files.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bjorn1004/route-finder/internal/model"
)

var ErrMalformed = errors.New("dataset: malformed input")

// Source yields a complete dataset.
type Source interface {
	Name() string
	Load(ctx context.Context) (*model.Dataset, error)
}

// Files loads the order file and the distance matrix file from disk.
type Files struct {
	Orders string
	Matrix string
}

func (f Files) Name() string { return "files:" + f.Orders }

func (f Files) Load(ctx context.Context) (*model.Dataset, error) {
	orders, err := readFile(f.Orders, ParseOrders)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matrix, err := readFile(f.Matrix, ParseMatrix)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.MatrixID >= matrix.Size() {
			return nil, fmt.Errorf("%w: order %d uses matrix id %d outside the matrix", ErrMalformed, o.ID, o.MatrixID)
		}
	}
	return model.NewDataset(orders, matrix)
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	fh, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("dataset: open: %w", err)
	}
	defer fh.Close()
	v, err := parse(fh)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Depot is the dump location appended after the customer orders.
func Depot() model.Order {
	return model.Order{
		ID:        0,
		Place:     "Dropoff",
		Frequency: model.Depot,
		MatrixID:  model.DepotMatrixID,
		X:         56343016,
		Y:         513026712,
	}
}

func newReader(r io.Reader, fields int) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = fields
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}

// ParseOrders reads Order;Plaats;Frequentie;AantContainers;VolumePerContainer;
// LedigingsDuurMinuten;MatrixID;XCoordinaat;YCoordinaat rows after a header
// line and appends the depot.
func ParseOrders(r io.Reader) ([]model.Order, error) {
	cr := newReader(r, 9)
	var orders []model.Order
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if line == 1 {
			continue
		}
		o, err := parseOrder(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, line, err)
		}
		orders = append(orders, o)
	}
	return append(orders, Depot()), nil
}

func parseOrder(rec []string) (model.Order, error) {
	var (
		o   model.Order
		err error
	)
	field := func(i int, name string) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = strconv.Atoi(strings.TrimSpace(rec[i]))
		if err != nil {
			err = fmt.Errorf("column %s: %w", name, err)
		}
		return v
	}
	o.ID = field(0, "Order")
	o.Place = strings.TrimSpace(rec[1])
	freq, ferr := ParseFrequency(rec[2])
	if ferr != nil {
		return o, ferr
	}
	o.Frequency = freq
	o.Containers = field(3, "AantContainers")
	perContainer := field(4, "VolumePerContainer")
	if err != nil {
		return o, err
	}
	minutes, perr := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
	if perr != nil {
		return o, fmt.Errorf("column LedigingsDuurMinuten: %w", perr)
	}
	o.MatrixID = field(6, "MatrixID")
	o.X = field(7, "XCoordinaat")
	o.Y = field(8, "YCoordinaat")
	if err != nil {
		return o, err
	}
	if o.Containers < 0 || perContainer < 0 || minutes < 0 || o.MatrixID < 0 {
		return o, errors.New("negative value")
	}
	o.Volume = uint32(o.Containers * perContainer)
	o.ServiceTime = model.Time(minutes * float64(model.Minute))
	return o, nil
}

// ParseFrequency understands the 1PWK..4PWK codes.
func ParseFrequency(s string) (model.Frequency, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	n, ok := strings.CutSuffix(s, "PWK")
	if !ok {
		return 0, fmt.Errorf("frequency %q", s)
	}
	v, err := strconv.Atoi(n)
	if err != nil || v < 1 || v > 4 {
		return 0, fmt.Errorf("frequency %q", s)
	}
	return model.Frequency(v), nil
}

// ParseMatrix reads MatrixID1;MatrixID2;Afstand;Rijtijd rows after a header
// line. Rijtijd is in seconds.
func ParseMatrix(r io.Reader) (*model.Matrix, error) {
	type edge struct{ from, to, secs int }
	cr := newReader(r, 4)
	var (
		edges []edge
		size  int
	)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if line == 1 {
			continue
		}
		var vals [4]int
		for i := range vals {
			if vals[i], err = strconv.Atoi(strings.TrimSpace(rec[i])); err != nil || vals[i] < 0 {
				return nil, fmt.Errorf("%w: line %d column %d: %q", ErrMalformed, line, i+1, rec[i])
			}
		}
		e := edge{from: vals[0], to: vals[1], secs: vals[3]}
		size = max(size, e.from+1, e.to+1)
		edges = append(edges, e)
	}
	m := model.NewMatrix(size)
	for _, e := range edges {
		m.Set(e.from, e.to, model.Time(e.secs)*model.Second)
	}
	return m, nil
}
