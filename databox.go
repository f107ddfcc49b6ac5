// Copyright (c) 2020–2024 The drumscan developers. All rights reserved.
// Project site: https://github.com/mcphysics/drumscan
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package drumscan

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// DataBox holds named columns of samples plus free-form header values,
// such as the sample rate or the iteration count of a run. Column order is
// preserved.
type DataBox struct {
	mu      sync.RWMutex
	order   []string
	columns map[string][]float64
	headers map[string]string
}

// NewDataBox returns an empty DataBox.
func NewDataBox() *DataBox {
	return &DataBox{
		columns: make(map[string][]float64),
		headers: make(map[string]string),
	}
}

// SetColumn stores a copy of data under name, replacing any existing column.
func (d *DataBox) SetColumn(name string, data []float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.columns[name]; !ok {
		d.order = append(d.order, name)
	}
	d.columns[name] = append([]float64(nil), data...)
}

// Column returns a copy of the named column.
func (d *DataBox) Column(name string) ([]float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	return append([]float64(nil), c...), nil
}

// Mean returns the arithmetic mean of the named column.
func (d *DataBox) Mean(name string) (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.columns[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	if len(c) == 0 {
		return 0, fmt.Errorf("column %q is empty", name)
	}
	return stat.Mean(c, nil), nil
}

// Columns returns the column names in insertion order.
func (d *DataBox) Columns() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.order...)
}

// Len returns the length of the longest column.
func (d *DataBox) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, c := range d.columns {
		n = max(n, len(c))
	}
	return n
}

func (d *DataBox) SetHeader(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.headers[key] = value
}

func (d *DataBox) Header(key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.headers[key]
	return v, ok
}

// Headers returns the header keys, sorted.
func (d *DataBox) Headers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.headers))
	for k := range d.headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
