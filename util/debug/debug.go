/*
 * renode-min - Log debug data to a file
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package debug

import (
	"fmt"
	"os"
)

var logFile *os.File = os.Stderr

// SetFile directs subsequent debug output at fileName, replacing the
// previous destination. Called once from cmd/softmmu-demo after the
// config file is parsed, rather than through a registration callback.
func SetFile(fileName string) error {
	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("unable to create debug file: %s", fileName)
	}
	logFile = file
	return nil
}

// Generic debug message.
func Debugf(module string, mask int, level int, format string, a ...interface{}) {
	if (mask & level) != 0 {
		fmt.Fprintf(logFile, module+": "+format+"\n", a...)
	}
}

// PMP debug message, gated by Config.DebugPMP rather than a mask/level
// pair since the PMP unit has only the one trace category.
func DebugPMPf(enabled bool, format string, a ...interface{}) {
	if enabled {
		fmt.Fprintf(logFile, "pmp: "+format+"\n", a...)
	}
}

// TLB debug message, gated the same way as DebugPMPf.
func DebugTLBf(enabled bool, format string, a ...interface{}) {
	if enabled {
		fmt.Fprintf(logFile, "tlb: "+format+"\n", a...)
	}
}
