// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build !linux

package gpioharness

import "time"

var epoch = time.Now()

func monotonicNow() int64 {
	return int64(time.Since(epoch))
}
