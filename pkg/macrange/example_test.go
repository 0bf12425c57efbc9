package macrange_test

import (
	"fmt"

	"github.com/jiayi-1994/zstack-macpool/pkg/macrange"
)

func ExampleGenerate() {
	macs, err := macrange.Generate("00:1a:4a:00:00:fe", "00:1A:4A:00:01:01", 2)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, mac := range macs {
		fmt.Println(mac)
	}
	// Output:
	// 00:1a:4a:00:00:fe
	// 00:1a:4a:00:00:ff
	// 00:1a:4a:00:01:00
}

func ExampleIsValid() {
	fmt.Println(macrange.IsValid("00:1a:4a:00:00:00", "00:1a:4a:00:00:ff"))
	fmt.Println(macrange.IsValid("01:00:00:00:00:00", "01:00:00:00:00:00"))
	fmt.Println(macrange.IsValid("00:00:00:00:00:05", "00:00:00:00:00:00"))
	// Output:
	// true
	// false
	// false
}

func ExampleFormat() {
	fmt.Println(macrange.Format(0x1a2b3c))
	// Output: 00:00:00:1a:2b:3c
}
