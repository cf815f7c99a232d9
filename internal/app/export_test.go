package app

import "time"

func (s *IngestionService) SetClock(now func() time.Time) { s.now = now }
