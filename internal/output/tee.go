package output

import "github.com/inodb/vcf-setops/internal/vcf"

type multiSink struct {
	sinks []Sink
}

// MultiSink duplicates the header and every record to each sink, in order.
// The first error stops the write.
func MultiSink(sinks ...Sink) Sink {
	all := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if m, ok := s.(*multiSink); ok {
			all = append(all, m.sinks...)
		} else if s != nil {
			all = append(all, s)
		}
	}
	return &multiSink{sinks: all}
}

func (m *multiSink) WriteHeader(h *vcf.Header) error {
	for _, s := range m.sinks {
		if err := s.WriteHeader(h); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiSink) WriteRecord(r *vcf.Record) error {
	for _, s := range m.sinks {
		if err := s.WriteRecord(r); err != nil {
			return err
		}
	}
	return nil
}
