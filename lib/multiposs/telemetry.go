package multiposs

import "multiposs/lib/telemetry"

var tracer = telemetry.Tracer("multiposs.lib.multiposs")
