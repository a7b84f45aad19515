package display

import logx "pubcast/pkg/logx"

func testLogger() logx.Logger { return logx.Nop() }
