// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package powermon is a container for power monitor drivers.
//
// See isl28022 for the Renesas ISL28022 digital power monitor and
// cmd/isl28022 for a sampling tool built on it.
package powermon
