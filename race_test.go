// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq_test

import "code.hybscloud.com/msgq"

// RaceEnabled mirrors msgq.RaceEnabled for the external test package.
const RaceEnabled = msgq.RaceEnabled
