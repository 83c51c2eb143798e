package main

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// kernelFalso responde cada mensaje con la siguiente respuesta de la lista
type kernelFalso struct {
	mu         sync.Mutex
	recibidos  []utils.Mensaje
	respuestas []map[string]interface{}
}

func (k *kernelFalso) atender(msg *utils.Mensaje) (interface{}, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.recibidos = append(k.recibidos, *msg)
	if len(k.respuestas) == 0 {
		return map[string]interface{}{"status": "OK", "decision": "REANUDAR", "pid": 1}, nil
	}
	r := k.respuestas[0]
	k.respuestas = k.respuestas[1:]
	return r, nil
}

func (k *kernelFalso) mensajes() []utils.Mensaje {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]utils.Mensaje(nil), k.recibidos...)
}

func nuevaCPUDePrueba(t *testing.T, falso *kernelFalso) *CPU {
	t.Helper()
	modulo := utils.NuevoModulo("Kernel", "")
	for _, tipo := range []int{utils.MensajeSyscall, utils.MensajeAccesoMemoria, utils.MensajeInterrupcion, utils.MensajeEstado, utils.MensajeMemoryDump} {
		modulo.RegistrarHandler(tipo, "default", falso.atender)
	}
	srv := httptest.NewServer(modulo.CrearServidor("127.0.0.1", 0).Handler())
	t.Cleanup(srv.Close)
	return NuevaCPU(utils.NewHTTPClientURL(srv.URL, "CPU"), 0)
}

func TestLeerScript(t *testing.T) {
	script := `
# programa de prueba
GETPID
PAGE_ALLOC 0x102000   # una página más

WRITE 0x102000 0x42
`
	instrucciones, err := leerScript(strings.NewReader(script))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"GETPID", "PAGE_ALLOC 0x102000", "WRITE 0x102000 0x42"}
	if len(instrucciones) != len(want) {
		t.Fatalf("instrucciones = %q", instrucciones)
	}
	for i := range want {
		if instrucciones[i] != want[i] {
			t.Errorf("instrucción %d = %q, se esperaba %q", i, instrucciones[i], want[i])
		}
	}
}

func TestEjecutarEnviaLosMensajes(t *testing.T) {
	falso := &kernelFalso{}
	cpu := nuevaCPUDePrueba(t, falso)

	err := cpu.Ejecutar([]string{"getpid", "PAGE_ALLOC 4096", "WRITE 0x101000 65", "READ 0x101000", "TICK", "NOOP"})
	if err != nil {
		t.Fatalf("Ejecutar() error = %v", err)
	}

	recibidos := falso.mensajes()
	if len(recibidos) != 5 {
		t.Fatalf("mensajes recibidos = %d, se esperaban 5", len(recibidos))
	}
	tests := []struct {
		tipo      int
		operacion string
	}{
		{utils.MensajeSyscall, utils.OperacionGetPID},
		{utils.MensajeSyscall, utils.OperacionPageAlloc},
		{utils.MensajeAccesoMemoria, "WRITE"},
		{utils.MensajeAccesoMemoria, "READ"},
		{utils.MensajeInterrupcion, "TIMER"},
	}
	for i, tt := range tests {
		if recibidos[i].Tipo != tt.tipo || recibidos[i].Operacion != tt.operacion {
			t.Errorf("mensaje %d = %d/%s, se esperaba %d/%s", i,
				recibidos[i].Tipo, recibidos[i].Operacion, tt.tipo, tt.operacion)
		}
	}
	if arg, _ := utils.ExtraerEntero(recibidos[1].Datos, "arg"); arg != 4096 {
		t.Errorf("arg de PAGE_ALLOC = %d", arg)
	}
	if !utils.ExtraerBool(recibidos[2].Datos, "escritura") {
		t.Error("WRITE no marcó escritura")
	}
	if cpu.PID() != 1 {
		t.Errorf("PID() = %d", cpu.PID())
	}
}

func TestEjecutarSigueLosCambiosDeContexto(t *testing.T) {
	falso := &kernelFalso{respuestas: []map[string]interface{}{
		{"status": "OK", "decision": "REANUDAR", "pid": 1, "retorno": 2},
		{"status": "OK", "decision": "REANUDAR", "pid": 2},
		{"status": "OK", "decision": "GIRAR"},
		{"status": "OK", "decision": "DETENER"},
	}}
	cpu := nuevaCPUDePrueba(t, falso)

	err := cpu.Ejecutar([]string{"FORK", "YIELD", "EXIT", "TICK", "GETPID"})
	if err != nil {
		t.Fatalf("Ejecutar() error = %v", err)
	}
	if n := len(falso.mensajes()); n != 4 {
		t.Errorf("después de DETENER no se deben enviar más mensajes: %d", n)
	}
}

func TestInstruccionesInvalidas(t *testing.T) {
	cpu := nuevaCPUDePrueba(t, &kernelFalso{})
	for _, instruccion := range []string{"SALTAR 3", "PAGE_ALLOC", "KILL x", "WRITE 0x1000", "WRITE 0x1000 256", "READ"} {
		if err := cpu.Ejecutar([]string{instruccion}); err == nil {
			t.Errorf("Ejecutar(%q) no devolvió error", instruccion)
		}
	}
}
