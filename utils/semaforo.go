package utils

// Semaforo implementa un semáforo contador con canales.
// Con capacidad 1 se usa como exclusión mutua.
type Semaforo struct {
	c chan struct{}
}

// NewSemaforo crea un semáforo con capacidad inicial
func NewSemaforo(capacidad int) *Semaforo {
	if capacidad <= 0 {
		capacidad = 1
	}
	return &Semaforo{
		c: make(chan struct{}, capacidad),
	}
}

// Wait (P) toma una unidad, bloquea si no quedan
func (s *Semaforo) Wait() {
	s.c <- struct{}{}
}

// Signal (V) devuelve una unidad
func (s *Semaforo) Signal() {
	select {
	case <-s.c:
	default:
		// Nadie tenía tomada una unidad: no se incrementa por encima de la capacidad
	}
}

// TryWait intenta tomar una unidad sin bloquear
func (s *Semaforo) TryWait() bool {
	select {
	case s.c <- struct{}{}:
		return true
	default:
		return false
	}
}

// Ocupadas devuelve cuántas unidades están tomadas
func (s *Semaforo) Ocupadas() int {
	return len(s.c)
}
