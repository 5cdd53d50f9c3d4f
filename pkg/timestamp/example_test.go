package timestamp_test

import (
	"fmt"
	"time"

	"github.com/c360/datahub/pkg/timestamp"
)

// ExampleSplit shows the wire form of an instant before 1970
func ExampleSplit() {
	sec, nanos := timestamp.Split(time.Unix(0, -250000000))
	fmt.Println(sec, nanos)
	// Output: -1 750000000
}

// ExampleParse shows the accepted input forms
func ExampleParse() {
	a, _ := timestamp.Parse("2023-01-15T12:30:45Z")
	b, _ := timestamp.Parse(int64(1673785845000))
	fmt.Println(a.Equal(b))
	// Output: true
}
