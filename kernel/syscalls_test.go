package kernel

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEscenarioForkAisladoYKill(t *testing.T) {
	k := nuevoKernel(t, nil)
	crearProcesos(t, k, 1)

	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)

	a, _ := k.Proceso(1)
	codigo, _, _ := a.Espacio.Traducir(vaCodigo)
	refsAntes := k.Memoria().RefCount(codigo)

	d, err = k.Syscall(Registros{RAX: SyscallFork})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != 2 {
		t.Fatalf("fork devolvió %d al padre, se esperaba 2", int64(d.Regs.RAX))
	}
	b, _ := k.Proceso(2)
	if b.Estado != EstadoRunnable || b.Regs.RAX != 0 {
		t.Fatalf("hijo = %v RAX %d", b, b.Regs.RAX)
	}
	if got := k.Memoria().RefCount(codigo); got != refsAntes+1 {
		t.Errorf("refcount del código compartido = %d, se esperaba %d", got, refsAntes+1)
	}
	auditar(t, k)

	if err := k.EscribirUsuario(2, vaDatos, []byte{0x42}); err != nil {
		t.Fatalf("EscribirUsuario() error = %v", err)
	}
	if got := leerByte(t, k, 1, vaDatos); got != 0x41 {
		t.Errorf("padre lee %#x, se esperaba 0x41", got)
	}
	if got := leerByte(t, k, 2, vaDatos); got != 0x42 {
		t.Errorf("hijo lee %#x, se esperaba 0x42", got)
	}
	if leerByte(t, k, 1, vaCodigo) != leerByte(t, k, 2, vaCodigo) {
		t.Error("el código compartido difiere entre padre e hijo")
	}

	d, err = k.Syscall(Registros{RAX: SyscallKill, RDI: 2})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != 0 {
		t.Errorf("kill devolvió %d", int64(d.Regs.RAX))
	}
	if got := k.Memoria().RefCount(codigo); got != refsAntes {
		t.Errorf("refcount del código después de matar al hijo = %d, se esperaba %d", got, refsAntes)
	}
	if got := k.Memoria().MarcosEnUso(); got != marcosPorProceso {
		t.Errorf("MarcosEnUso() = %d, se esperaba %d", got, marcosPorProceso)
	}
	auditar(t, k)

	d, err = k.Syscall(Registros{RAX: SyscallKill, RDI: 1})
	if err != nil || d.Tipo != Girar {
		t.Fatalf("matarse a sí mismo: decisión %s error %v, se esperaba GIRAR", d.Tipo, err)
	}
	if got := k.Memoria().MarcosEnUso(); got != 0 {
		t.Errorf("MarcosEnUso() = %d al final, se esperaba 0", got)
	}
	if got := k.Memoria().RefCount(k.Config().DireccionConsola); got != 1 {
		t.Errorf("refcount de consola = %d, se esperaba 1", got)
	}
	auditar(t, k)
}

func TestForkFallidoNoTocaAlPadre(t *testing.T) {
	k := nuevoKernel(t, nil)
	crearProcesos(t, k, 1)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)

	// Alcanza para la estructura del hijo y la copia de datos, no para la pila
	ocupados := ocuparHasta(t, k.Memoria(), 5)
	antes := k.Memoria().Contadores()
	padre, _ := k.Proceso(1)
	raiz := padre.Espacio.Raiz()

	d, err = k.Syscall(Registros{RAX: SyscallFork})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != RetornoError {
		t.Fatalf("fork devolvió %d, se esperaba -1", int64(d.Regs.RAX))
	}

	despues := k.Memoria().Contadores()
	for marco := range antes {
		if antes[marco] != despues[marco] {
			t.Errorf("marco %d: refcount %d -> %d", marco, antes[marco], despues[marco])
		}
	}
	if hijo, _ := k.Proceso(2); hijo.Estado != EstadoFree {
		t.Errorf("ranura candidata = %s, se esperaba FREE", hijo.Estado)
	}
	if padre.Espacio.Raiz() != raiz || leerByte(t, k, 1, vaDatos) != 0x41 {
		t.Error("el espacio del padre cambió")
	}
	if padre.Metricas.Forks != 0 {
		t.Errorf("Forks = %d", padre.Metricas.Forks)
	}

	soltar(t, k.Memoria(), ocupados)
	auditar(t, k)
}

func TestForkSinRanuras(t *testing.T) {
	k := nuevoKernel(t, func(c *Config) { c.CantidadProcesos = 2 })
	crearProcesos(t, k, 1)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)

	libres := k.Memoria().MarcosLibres()
	d, err = k.Syscall(Registros{RAX: SyscallFork})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != RetornoError {
		t.Fatalf("fork devolvió %d, se esperaba -1", int64(d.Regs.RAX))
	}
	if k.Memoria().MarcosLibres() != libres {
		t.Error("un fork sin ranura consumió marcos")
	}
}

func TestGetPIDYYield(t *testing.T) {
	k := nuevoKernel(t, nil)
	crearProcesos(t, k, 1, 2)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)

	d, err = k.Syscall(Registros{RAX: SyscallGetPID})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != 1 {
		t.Errorf("getpid = %d", d.Regs.RAX)
	}

	d, err = k.Syscall(Registros{RAX: SyscallYield})
	esperarReanudar(t, d, err, 2)
	if p, _ := k.Proceso(1); p.Regs.RAX != 0 {
		t.Errorf("yield dejó RAX = %d", p.Regs.RAX)
	}
}

func TestPageAlloc(t *testing.T) {
	tests := []struct {
		name string
		va   uint64
		want uint64
	}{
		{"región del kernel", 0x80000, RetornoError},
		{"desalineada", 0x102010, RetornoError},
		{"en el techo virtual", 0x300000, RetornoError},
		{"consola", 0xB8000, RetornoError},
		{"página nueva", 0x102000, 0},
		{"debajo de la pila", 0x2FE000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := nuevoKernel(t, nil)
			crearProcesos(t, k, 1)
			d, err := k.Arrancar()
			esperarReanudar(t, d, err, 1)
			enUso := k.Memoria().MarcosEnUso()

			d, err = k.Syscall(Registros{RAX: SyscallPageAlloc, RDI: tt.va})
			esperarReanudar(t, d, err, 1)
			if d.Regs.RAX != tt.want {
				t.Fatalf("page_alloc(%#x) = %d, se esperaba %d", tt.va, int64(d.Regs.RAX), int64(tt.want))
			}
			if tt.want == RetornoError {
				if k.Memoria().MarcosEnUso() != enUso {
					t.Error("un page_alloc fallido consumió marcos")
				}
				return
			}

			if err := k.EscribirUsuario(1, tt.va+7, []byte{0xAA}); err != nil {
				t.Fatalf("la página nueva no es escribible: %v", err)
			}
			if got := leerByte(t, k, 1, tt.va); got != 0 {
				t.Errorf("la página nueva no está en cero: %#x", got)
			}
			auditar(t, k)
		})
	}
}

func TestPageAllocReemplazaLaPaginaAnterior(t *testing.T) {
	k := nuevoKernel(t, nil)
	crearProcesos(t, k, 1)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)
	enUso := k.Memoria().MarcosEnUso()

	d, err = k.Syscall(Registros{RAX: SyscallPageAlloc, RDI: vaDatos})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != 0 {
		t.Fatalf("page_alloc = %d", int64(d.Regs.RAX))
	}
	if got := leerByte(t, k, 1, vaDatos); got != 0 {
		t.Errorf("la página reemplazada conserva %#x", got)
	}
	if got := k.Memoria().MarcosEnUso(); got != enUso {
		t.Errorf("MarcosEnUso() = %d, se esperaba %d", got, enUso)
	}
	auditar(t, k)
}

func TestPageAllocSinMemoria(t *testing.T) {
	k := nuevoKernel(t, nil)
	crearProcesos(t, k, 1)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)
	ocupados := ocuparHasta(t, k.Memoria(), 0)

	d, err = k.Syscall(Registros{RAX: SyscallPageAlloc, RDI: 0x102000})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != RetornoError {
		t.Fatalf("page_alloc sin memoria = %d", int64(d.Regs.RAX))
	}
	if leerByte(t, k, 1, vaDatos) != 0x41 {
		t.Error("se corrompió un mapeo existente")
	}

	// Liberar un marco habilita exactamente una asignación
	soltar(t, k.Memoria(), ocupados[:1])
	d, err = k.Syscall(Registros{RAX: SyscallPageAlloc, RDI: 0x102000})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != 0 {
		t.Fatalf("page_alloc con un marco libre = %d", int64(d.Regs.RAX))
	}
	d, err = k.Syscall(Registros{RAX: SyscallPageAlloc, RDI: 0x103000})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != RetornoError {
		t.Fatalf("segundo page_alloc = %d", int64(d.Regs.RAX))
	}

	soltar(t, k.Memoria(), ocupados[1:])
	auditar(t, k)
}

func TestExitPasaAlSiguiente(t *testing.T) {
	k := nuevoKernel(t, nil)
	crearProcesos(t, k, 1, 2)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)

	d, err = k.Syscall(Registros{RAX: SyscallExit})
	esperarReanudar(t, d, err, 2)
	if p, _ := k.Proceso(1); p.Estado != EstadoFree {
		t.Errorf("pid 1 = %s después de exit", p.Estado)
	}
	auditar(t, k)
}

func TestKillInvalido(t *testing.T) {
	k := nuevoKernel(t, nil)
	crearProcesos(t, k, 1)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)

	for _, objetivo := range []uint64{0, 5, 16, RetornoError} {
		d, err = k.Syscall(Registros{RAX: SyscallKill, RDI: objetivo})
		esperarReanudar(t, d, err, 1)
		if d.Regs.RAX != RetornoError {
			t.Errorf("kill(%d) = %d, se esperaba -1", objetivo, int64(d.Regs.RAX))
		}
	}
}

func TestSleepBloqueante(t *testing.T) {
	k := nuevoKernel(t, nil)
	crearProcesos(t, k, 1)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)

	d, err = k.Syscall(Registros{RAX: SyscallSleep, RDI: 0})
	esperarReanudar(t, d, err, 1)

	d, err = k.Syscall(Registros{RAX: SyscallSleep, RDI: 3})
	if err != nil || d.Tipo != Girar {
		t.Fatalf("sleep: decisión %s error %v, se esperaba GIRAR", d.Tipo, err)
	}
	if p, _ := k.Proceso(1); p.Estado != EstadoBlocked {
		t.Fatalf("estado = %s, se esperaba BLOCKED", p.Estado)
	}

	for i := 0; i < 2; i++ {
		d, err = k.Excepcion(Registros{IntNo: IntTimer})
		if err != nil || d.Tipo != Girar {
			t.Fatalf("tick %d: decisión %s error %v", i, d.Tipo, err)
		}
	}
	d, err = k.Excepcion(Registros{IntNo: IntTimer})
	esperarReanudar(t, d, err, 1)
	if d.Regs.RAX != 0 {
		t.Errorf("sleep devolvió %d", int64(d.Regs.RAX))
	}
}

func TestSleepEsperaActiva(t *testing.T) {
	k := nuevoKernel(t, func(c *Config) { c.ModoSleep = SleepEsperaActiva })
	crearProcesos(t, k, 1, 2)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)

	listo := make(chan struct{})
	defer close(listo)
	go func() {
		for {
			select {
			case <-listo:
				return
			default:
				k.ContarTick()
				time.Sleep(time.Millisecond)
			}
		}
	}()

	desde := k.Ticks()
	d, err = k.Syscall(Registros{RAX: SyscallSleep, RDI: 5})
	// La espera activa no cede la CPU a otro proceso
	esperarReanudar(t, d, err, 1)
	if k.Ticks()-desde < 5 {
		t.Errorf("sleep volvió después de %d ticks", k.Ticks()-desde)
	}
	if p, _ := k.Proceso(1); p.Estado != EstadoRunnable {
		t.Errorf("estado = %s", p.Estado)
	}
}

func TestSleepEsperaActivaRespetaLaParada(t *testing.T) {
	var parar atomic.Bool
	config := ConfigPorDefecto()
	config.ModoSleep = SleepEsperaActiva
	k, err := Nuevo(config, Opciones{Parada: parar.Load})
	if err != nil {
		t.Fatal(err)
	}
	crearProcesos(t, k, 1)
	d, err := k.Arrancar()
	esperarReanudar(t, d, err, 1)

	go func() {
		time.Sleep(10 * time.Millisecond)
		parar.Store(true)
	}()

	d, err = k.Syscall(Registros{RAX: SyscallSleep, RDI: 1 << 40})
	if err != nil || d.Tipo != Detener {
		t.Fatalf("decisión %s error %v, se esperaba DETENER", d.Tipo, err)
	}
	if !k.Detenido() {
		t.Error("el kernel no quedó detenido")
	}
}

func TestSyscallsFatales(t *testing.T) {
	tests := []struct {
		name   string
		numero uint64
	}{
		{"panic", SyscallPanic},
		{"desconocida", 99},
		{"cero", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := nuevoKernel(t, nil)
			crearProcesos(t, k, 1)
			d, err := k.Arrancar()
			esperarReanudar(t, d, err, 1)

			d, err = k.Syscall(Registros{RAX: tt.numero})
			var panico *PanicoKernel
			if !errors.As(err, &panico) || d.Tipo != Panico {
				t.Fatalf("decisión %s error %v, se esperaba pánico", d.Tipo, err)
			}
			if !k.Detenido() {
				t.Error("el kernel sigue activo después del pánico")
			}
			if _, err := k.Syscall(Registros{RAX: SyscallGetPID}); !errors.Is(err, ErrKernelDetenido) {
				t.Errorf("syscall después del pánico error = %v", err)
			}
		})
	}
}

func TestNombreSyscall(t *testing.T) {
	for numero := SyscallGetPID; numero <= SyscallSleep; numero++ {
		got, ok := NumeroSyscall(NombreSyscall(numero))
		if !ok || got != numero {
			t.Errorf("NumeroSyscall(NombreSyscall(%d)) = %d, %v", numero, got, ok)
		}
	}
	if _, ok := NumeroSyscall("READ"); ok {
		t.Error("NumeroSyscall aceptó una operación desconocida")
	}
}
