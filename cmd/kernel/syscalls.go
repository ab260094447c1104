package main

import (
	"sync"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// Numeración estable de las syscalls expuestas por el despachador
const (
	SysFork    = 1
	SysExit    = 2
	SysWait    = 3
	SysKill    = 6
	SysGetpid  = 11
	SysSbrk    = 12
	SysSleep   = 13
	SysUptime  = 14
	SysWait2   = 22
	SysSetPrio = 23
	SysYield   = 24
	SysDraw    = 25
	SysHistory = 26
)

// argsSyscall lleva los argumentos crudos de una syscall al manejador
type argsSyscall struct {
	entero1  int
	entero2  int
	buffer   []byte
	punteros [4]*int
	programa func(*Proc)
}

var tablaSyscalls = map[int]func(*Proc, *argsSyscall) int{
	SysFork:    sysFork,
	SysExit:    sysExit,
	SysWait:    sysWait,
	SysKill:    sysKill,
	SysGetpid:  sysGetpid,
	SysSbrk:    sysSbrk,
	SysSleep:   sysSleep,
	SysUptime:  sysUptime,
	SysWait2:   sysWait2,
	SysSetPrio: sysSetPrio,
	SysYield:   sysYield,
	SysDraw:    sysDraw,
	SysHistory: sysHistory,
}

// syscall es el despachador: adapta el número a su manejador, deja el
// retorno en el trapframe y aplica el chequeo de proceso marcado del camino
// de retorno a modo usuario
func (p *Proc) syscall(num int, a *argsSyscall) int {
	manejador, ok := tablaSyscalls[num]
	if !ok {
		utils.ErrorLog.Error("Syscall desconocida", "numero", num, "pid", p.pid)
		p.trapframe.AX = -1
		return -1
	}
	if a == nil {
		a = &argsSyscall{}
	}
	ret := manejador(p, a)
	p.trapframe.AX = ret

	if p.matado {
		p.Exit()
	}
	return ret
}

func sysFork(p *Proc, a *argsSyscall) int {
	return p.forkear(a.programa, p.nombre, false)
}

func sysExit(p *Proc, a *argsSyscall) int {
	p.Exit()
	return 0 // no alcanzado
}

func sysWait(p *Proc, a *argsSyscall) int {
	return p.esperar(nil)
}

func sysWait2(p *Proc, a *argsSyscall) int {
	return p.esperar(func(hijo *Proc) {
		if a.punteros[0] != nil {
			*a.punteros[0] = hijo.retime
		}
		if a.punteros[1] != nil {
			*a.punteros[1] = hijo.rutime
		}
		if a.punteros[2] != nil {
			*a.punteros[2] = hijo.stime
		}
		if a.punteros[3] != nil {
			*a.punteros[3] = hijo.ctime
		}
	})
}

func sysKill(p *Proc, a *argsSyscall) int {
	return p.k.matar(p.cpu, a.entero1)
}

func sysGetpid(p *Proc, a *argsSyscall) int {
	return p.pid
}

func sysSbrk(p *Proc, a *argsSyscall) int {
	direccion := p.tam
	if p.crecer(a.entero1) < 0 {
		return -1
	}
	return direccion
}

func sysSleep(p *Proc, a *argsSyscall) int {
	n := a.entero1
	if n < 0 {
		return -1
	}
	k := p.k

	k.tickslock.Adquirir(p.cpu)
	ticks0 := k.ticks
	for k.ticks-ticks0 < n {
		if p.matado {
			k.tickslock.Liberar(p.cpu)
			return -1
		}
		k.dormir(p, &k.ticks, &k.tickslock)
	}
	k.tickslock.Liberar(p.cpu)
	return 0
}

func sysUptime(p *Proc, a *argsSyscall) int {
	k := p.k
	k.tickslock.Adquirir(p.cpu)
	ticks := k.ticks
	k.tickslock.Liberar(p.cpu)
	return ticks
}

func sysSetPrio(p *Proc, a *argsSyscall) int {
	return p.setPrio(a.entero1)
}

func sysYield(p *Proc, a *argsSyscall) int {
	p.ceder()
	return 0
}

// bannerConsola es la imagen ASCII que copia la syscall draw
const bannerConsola = "" +
	"   _____________________________________________ \n" +
	"  /                                             \\\n" +
	" |     .---.                                     |\n" +
	" |    (o   o)     LOS CUERVOS XENEIZES           |\n" +
	" |     |> <|      kernel: planificacion + swap   |\n" +
	" |    /|   |\\                                    |\n" +
	" |     |___|                                     |\n" +
	" |      ^ ^                                      |\n" +
	"  \\_____________________________________________/\n"

// sysDraw copia el banner al buffer de usuario; devuelve los bytes
// copiados (incluido el terminador) o -1 si el buffer no alcanza
func sysDraw(p *Proc, a *argsSyscall) int {
	tam := len(bannerConsola) + 1
	if len(a.buffer) < tam {
		return -1
	}
	n := copy(a.buffer, bannerConsola)
	a.buffer[n] = 0
	return tam
}

// sysHistory copia el comando id del historial de consola; 0 si lo copió,
// 1 si el slot está vacío, 2 si id está fuera de rango
func sysHistory(p *Proc, a *argsSyscall) int {
	comando, codigo := p.k.consola.Comando(a.entero2)
	if codigo != 0 {
		return codigo
	}
	copy(a.buffer, comando)
	return 0
}

// Envolturas de la interfaz de usuario sobre el despachador

func (p *Proc) Fork(programa func(*Proc)) int {
	return p.syscall(SysFork, &argsSyscall{programa: programa})
}

func (p *Proc) Wait() int {
	return p.syscall(SysWait, nil)
}

func (p *Proc) Wait2(retime, rutime, stime, ctime *int) int {
	return p.syscall(SysWait2, &argsSyscall{punteros: [4]*int{retime, rutime, stime, ctime}})
}

func (p *Proc) Kill(pid int) int {
	return p.syscall(SysKill, &argsSyscall{entero1: pid})
}

func (p *Proc) Sbrk(n int) int {
	return p.syscall(SysSbrk, &argsSyscall{entero1: n})
}

func (p *Proc) Sleep(n int) int {
	return p.syscall(SysSleep, &argsSyscall{entero1: n})
}

func (p *Proc) Uptime() int {
	return p.syscall(SysUptime, nil)
}

func (p *Proc) SetPrio(prioridad int) int {
	return p.syscall(SysSetPrio, &argsSyscall{entero1: prioridad})
}

func (p *Proc) Yield() {
	p.syscall(SysYield, nil)
}

func (p *Proc) Draw(buffer []byte) int {
	return p.syscall(SysDraw, &argsSyscall{buffer: buffer})
}

func (p *Proc) History(buffer []byte, id int) int {
	return p.syscall(SysHistory, &argsSyscall{buffer: buffer, entero2: id})
}

// MaxHistorial es la cantidad de comandos de consola recordados
const MaxHistorial = 16

// historialConsola guarda los últimos comandos tipeados en la consola
type historialConsola struct {
	mu       sync.Mutex
	comandos []string
}

// Registrar agrega un comando, descartando el más viejo si no hay lugar
func (h *historialConsola) Registrar(comando string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.comandos = append(h.comandos, comando)
	if len(h.comandos) > MaxHistorial {
		h.comandos = h.comandos[1:]
	}
}

// Comando devuelve el comando en la posición id: 0 si existe, 1 si el slot
// está vacío, 2 si id está fuera de rango
func (h *historialConsola) Comando(id int) (string, int) {
	if id < 0 || id >= MaxHistorial {
		return "", 2
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if id >= len(h.comandos) {
		return "", 1
	}
	return h.comandos[id], 0
}
