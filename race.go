// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package msgq

// RaceEnabled is true when the race detector is active.
// Tests use it to shrink stress loops whose timing assumptions do not hold
// under the detector's slowdown.
const RaceEnabled = true
