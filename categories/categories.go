// Package categories holds the fixed stock categories used to pick featured
// images. Bucket numbers are 1-based positions in the table.
package categories

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// ImagesPerBucket is how many stock images each bucket holds, numbered 1..ImagesPerBucket.
const ImagesPerBucket = 6

var names = [...]string{
	"Abroad",
	"Agriculture",
	"Aircon",
	"Animals",
	"Appliances",
	"Architects",
	"Asbestos",
	"Blinds",
	"Caravans",
	"Care",
	"Carpentry",
	"Cleaning",
	"Therapy",
	"Drainage",
	"Alcohol",
	"Education",
	"Electrical",
	"Engineering",
	"Fencing",
	"Flooring",
	"Construction",
	"Housing",
	"Landscaping",
	"Locksmith",
	"Massages",
	"Office",
	"Decorating",
	"Pests",
	"Plastering",
	"Heating",
	"Removals",
	"Roofing",
	"Security",
	"Steelworks",
	"Tiling",
	"Treatments",
	"Trees",
}

var buckets = func() map[string]int {
	m := make(map[string]int, len(names))
	for i, name := range names {
		m[name] = i + 1
	}
	return m
}()

// Lookup returns the bucket number for a category name.
func Lookup(name string) (int, bool) {
	n, ok := buckets[strings.TrimSpace(name)]
	return n, ok
}

// Names returns the category names in bucket order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names[:])
	return out
}

// ImageURL picks one of the bucket's stock images. pick returns a value in
// [0, n); nil uses math/rand.
func ImageURL(baseURL, category string, pick func(n int) int) (string, error) {
	bucket, ok := Lookup(category)
	if !ok {
		return "", fmt.Errorf("unknown stock category %q", category)
	}
	if pick == nil {
		pick = rand.IntN
	}
	index := pick(ImagesPerBucket) + 1
	return fmt.Sprintf("%s/%d/%d.jpg", strings.TrimRight(baseURL, "/"), bucket, index), nil
}
