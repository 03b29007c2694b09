package appointment

import (
	"time"

	redisclient "github.com/hackgods/hospital-admin/internal/redis"
)

func SetClock(s *Service, now func() time.Time) { s.now = now }

func SetLocker(s *Service, l redisclient.Locker) { s.locker = l }

func SetLocation(s *Service, loc *time.Location) { s.opts.Location = loc }
